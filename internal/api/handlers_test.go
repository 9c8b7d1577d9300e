package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanaudit/app"
	"loanaudit/domain/dataset"
	"loanaudit/domain/provenance"
	apperrors "loanaudit/internal/errors"
	"loanaudit/internal/testkit"
)

func newTestServer(t *testing.T) (*Server, *provenance.Ledger) {
	t.Helper()
	ledger := provenance.NewLedger()
	svc := app.NewAuditService(ledger, testkit.NewInMemoryRunRepository(), &testkit.RNGAdapter{}, nil, nil, app.ServiceOptions{Actor: "api_tester"})
	return NewServer(svc, nil, Options{Mode: gin.TestMode, DefaultSeed: 42}), ledger
}

func do(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func incomeDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.New(
		[]dataset.Column{
			{Name: dataset.ColLoanID, Kind: dataset.KindIdentifier},
			{Name: dataset.ColApplicantIncome, Kind: dataset.KindContinuous},
			{Name: dataset.ColLoanAmount, Kind: dataset.KindContinuous},
		},
		[][]dataset.Value{
			{dataset.String("L1"), dataset.Numeric(2000), dataset.Numeric(100)},
			{dataset.String("L2"), dataset.Numeric(2000), dataset.Missing()},
			{dataset.String("L3"), dataset.Numeric(100000), dataset.Numeric(100)},
		},
	)
	require.NoError(t, err)
	return ds
}

func loanDataset(t *testing.T, n int) *dataset.Dataset {
	t.Helper()
	cfg := testkit.DefaultLoanConfig()
	cfg.Records = n
	ds, err := testkit.NewLoanGenerator(cfg).Generate()
	require.NoError(t, err)
	return ds
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestQualityEndpoint(t *testing.T) {
	s, ledger := newTestServer(t)

	w := do(t, s, http.MethodPost, "/api/v1/quality", gin.H{"dataset": incomeDataset(t)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		RunID  string `json:"run_id"`
		Report struct {
			TotalMissing int `json:"total_missing"`
			Numeric      []struct {
				Column string `json:"column"`
				Bounds struct {
					Upper float64 `json:"upper_bound"`
				} `json:"bounds"`
			} `json:"numeric"`
		} `json:"report"`
	}
	decode(t, w, &body)
	assert.NotEmpty(t, body.RunID)
	assert.Equal(t, 1, body.Report.TotalMissing)
	require.Len(t, body.Report.Numeric, 2)
	assert.Equal(t, dataset.ColApplicantIncome, body.Report.Numeric[0].Column)
	assert.Equal(t, 63250.0, body.Report.Numeric[0].Bounds.Upper)
	assert.Equal(t, 1, ledger.Len())
}

func TestCleanEndpoint_ThreeRecordScenario(t *testing.T) {
	s, ledger := newTestServer(t)

	w := do(t, s, http.MethodPost, "/api/v1/clean", gin.H{
		"dataset":        incomeDataset(t),
		"imputation":     []gin.H{{"column": dataset.ColApplicantIncome, "strategy": "Median"}},
		"outlier_policy": "Cap Outliers (IQR Method)",
		"multiplier":     1.5,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Dataset *dataset.Dataset `json:"dataset"`
	}
	decode(t, w, &body)
	require.NotNil(t, body.Dataset)
	assert.Equal(t, []float64{2000, 2000, 63250}, body.Dataset.NumericValues(dataset.ColApplicantIncome))
	assert.Equal(t, 1, body.Dataset.MissingCount(dataset.ColLoanAmount), "only planned columns are imputed")

	entries := ledger.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "No missing values to impute in `ApplicantIncome`.", entries[0].Description)
	assert.Equal(t, "Capped 0 lower and 1 upper outliers in `ApplicantIncome` using IQR multiplier 1.5.", entries[1].Description)
}

func TestZeroMultiplierIsRejected(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		body  gin.H
		stage string
	}{
		{"quality", "/api/v1/quality", gin.H{"multiplier": 0}, "quality"},
		{"clean", "/api/v1/clean", gin.H{"outlier_policy": "cap", "multiplier": 0}, "cleaning"},
		{"pipeline", "/api/v1/pipeline", gin.H{"multiplier": 0}, "quality"},
		{"pipeline clean", "/api/v1/pipeline", gin.H{"clean": gin.H{"outlier_policy": "cap", "multiplier": 0}}, "cleaning"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ledger := newTestServer(t)
			tt.body["dataset"] = incomeDataset(t)

			w := do(t, s, http.MethodPost, tt.path, tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

			var body struct {
				Code  string `json:"code"`
				Stage string `json:"stage"`
			}
			decode(t, w, &body)
			assert.Equal(t, "CONFIG_OUT_OF_RANGE", body.Code)
			assert.Equal(t, tt.stage, body.Stage)
			assert.Zero(t, ledger.Len())
		})
	}
}

func TestCleanEndpoint_MissingMultiplierUsesDefault(t *testing.T) {
	s, ledger := newTestServer(t)

	w := do(t, s, http.MethodPost, "/api/v1/clean", gin.H{
		"dataset":        incomeDataset(t),
		"imputation":     []gin.H{},
		"outlier_policy": "cap",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	entries := ledger.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "Capped 0 lower and 1 upper outliers in `ApplicantIncome` using IQR multiplier 1.5.", entries[0].Description)
}

func TestCleanEndpoint_AttributedError(t *testing.T) {
	s, ledger := newTestServer(t)

	w := do(t, s, http.MethodPost, "/api/v1/clean", gin.H{
		"dataset":    incomeDataset(t),
		"imputation": []gin.H{{"column": dataset.ColLoanID, "strategy": "median"}},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body ErrorResponse
	decode(t, w, &body)
	assert.Equal(t, apperrors.CodeInvalidColumnState, body.Code)
	assert.Equal(t, dataset.ColLoanID, body.Column)
	assert.Equal(t, "cleaning", body.Stage)
	assert.Zero(t, ledger.Len())
}

func TestCleanEndpoint_UnknownStrategy(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s, http.MethodPost, "/api/v1/clean", gin.H{
		"dataset":    incomeDataset(t),
		"imputation": []gin.H{{"column": dataset.ColApplicantIncome, "strategy": "interpolate"}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFairnessEndpoint_InsufficientGroups(t *testing.T) {
	s, ledger := newTestServer(t)
	ds, err := dataset.FromRecords(dataset.LoanSchema, []dataset.Record{
		{dataset.ColGender: dataset.String("Female"), dataset.ColLoanStatus: dataset.String("Y")},
	})
	require.NoError(t, err)

	w := do(t, s, http.MethodPost, "/api/v1/fairness", gin.H{"dataset": ds})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body map[string]json.RawMessage
	decode(t, w, &body)
	assert.Equal(t, "null", string(body["metrics"]))
	assert.Equal(t, 1, ledger.Len())
}

func TestSimulateEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	ds := loanDataset(t, 60)

	run := func(cfg gin.H) *httptest.ResponseRecorder {
		return do(t, s, http.MethodPost, "/api/v1/simulate", gin.H{"dataset": ds, "config": cfg, "seed": 9})
	}

	a := run(gin.H{"human_review_threshold": 0.55})
	b := run(gin.H{"human_review_threshold": 0.55})
	require.Equal(t, http.StatusOK, a.Code, a.Body.String())

	var ra, rb struct {
		Seed    int64            `json:"seed"`
		Dataset *dataset.Dataset `json:"dataset"`
	}
	decode(t, a, &ra)
	decode(t, b, &rb)
	assert.Equal(t, int64(9), ra.Seed)
	assert.Equal(t, ra.Dataset.Fingerprint(), rb.Dataset.Fingerprint())

	w := run(gin.H{"income_uncertainty_pct": 25})
	require.Equal(t, http.StatusBadRequest, w.Code)
	var body ErrorResponse
	decode(t, w, &body)
	assert.Equal(t, apperrors.CodeConfigOutOfRange, body.Code)
	assert.Equal(t, "simulation", body.Stage)
}

func TestSimulateBatchEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodPost, "/api/v1/simulate/batch", gin.H{"dataset": loanDataset(t, 40), "seeds": []int64{1, 2}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Runs []struct {
			Seed int64 `json:"seed"`
		} `json:"runs"`
	}
	decode(t, w, &body)
	require.Len(t, body.Runs, 2)
	assert.Equal(t, int64(2), body.Runs[1].Seed)

	w = do(t, s, http.MethodPost, "/api/v1/simulate/batch", gin.H{"dataset": loanDataset(t, 5)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPipelineEndpoint(t *testing.T) {
	s, ledger := newTestServer(t)

	w := do(t, s, http.MethodPost, "/api/v1/pipeline", gin.H{"dataset": loanDataset(t, 120)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body map[string]json.RawMessage
	decode(t, w, &body)
	for _, key := range []string{"quality", "cleaning", "fairness", "simulation"} {
		assert.Contains(t, body, key)
	}
	assert.GreaterOrEqual(t, ledger.Len(), 3)
}

func TestProvenanceEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodPost, "/api/v1/provenance", gin.H{"actor": "steward", "description": "Imported from core banking"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, s, http.MethodPost, "/api/v1/provenance", gin.H{"description": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	do(t, s, http.MethodPost, "/api/v1/quality", gin.H{"dataset": incomeDataset(t)})

	w = do(t, s, http.MethodGet, "/api/v1/provenance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all struct {
		Entries []provenance.Entry `json:"entries"`
		Count   int                `json:"count"`
	}
	decode(t, w, &all)
	require.Equal(t, 2, all.Count)
	assert.Equal(t, provenance.ActionLineage, all.Entries[0].Action)
	assert.Equal(t, "steward", all.Entries[0].Actor)
	assert.Equal(t, "api_tester", all.Entries[1].Actor)

	w = do(t, s, http.MethodGet, "/api/v1/provenance?action=Data+Quality+Audit", nil)
	decode(t, w, &all)
	assert.Equal(t, 1, all.Count)

	w = do(t, s, http.MethodGet, "/api/v1/provenance?action=Bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, s, http.MethodGet, "/api/v1/provenance?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodPost, "/api/v1/quality", gin.H{"dataset": incomeDataset(t)})
	var q struct {
		RunID string `json:"run_id"`
	}
	decode(t, w, &q)

	w = do(t, s, http.MethodGet, "/api/v1/runs/"+q.RunID, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, s, http.MethodGet, "/api/v1/runs?stage=quality", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, http.MethodGet, "/api/v1/runs/0190b8a4-0000-7000-8000-000000000000", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodGet, "/api/v1/runs/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMissingDataset(t *testing.T) {
	s, _ := newTestServer(t)
	for _, path := range []string{"/api/v1/quality", "/api/v1/clean", "/api/v1/fairness", "/api/v1/simulate", "/api/v1/pipeline"} {
		w := do(t, s, http.MethodPost, path, gin.H{})
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}
