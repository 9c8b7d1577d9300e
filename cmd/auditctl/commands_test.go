package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanaudit/internal/cleaning"
)

func execute(t *testing.T, cmd *cobra.Command, args ...string) []byte {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	return out.Bytes()
}

func testFlags() *globalFlags {
	return &globalFlags{records: 80, dataSeed: 3, actor: "cli_test", logLevel: "error", showLog: true}
}

func TestParsePlan(t *testing.T) {
	plan, err := parsePlan([]string{"LoanAmount=Median", "Gender = mode", "Credit_History=Remove Rows"})
	require.NoError(t, err)
	assert.Equal(t, cleaning.Plan{
		{Column: "LoanAmount", Strategy: cleaning.StrategyMedian},
		{Column: "Gender", Strategy: cleaning.StrategyMode},
		{Column: "Credit_History", Strategy: cleaning.StrategyRemoveRows},
	}, plan)

	_, err = parsePlan([]string{"LoanAmount"})
	assert.Error(t, err)
	_, err = parsePlan([]string{"LoanAmount=spline"})
	assert.Error(t, err)
}

func TestQualityCommand(t *testing.T) {
	out := execute(t, newQualityCmd(testFlags()))

	var body struct {
		Result struct {
			Report struct {
				Rows int `json:"rows"`
			} `json:"report"`
		} `json:"result"`
		Provenance []struct {
			Action string `json:"action"`
			Actor  string `json:"actor"`
		} `json:"provenance"`
	}
	require.NoError(t, json.Unmarshal(out, &body))
	assert.Equal(t, 80, body.Result.Report.Rows)
	require.Len(t, body.Provenance, 2)
	assert.Equal(t, "Data Ingestion", body.Provenance[0].Action)
	assert.Equal(t, "Data Quality Audit", body.Provenance[1].Action)
	assert.Equal(t, "cli_test", body.Provenance[1].Actor)
}

func TestGenerateThenPipelineFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loans.csv")
	execute(t, newGenerateCmd(), "--records", "60", "--seed", "5", "--out", path)

	flags := testFlags()
	flags.file = path
	out := execute(t, newPipelineCmd(flags), "--seed", "11")

	var body struct {
		Result struct {
			Simulation struct {
				Records int `json:"records"`
			} `json:"simulation"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(out, &body))
	assert.Equal(t, 60, body.Result.Simulation.Records)
}

func TestSimulateBatchCommand(t *testing.T) {
	out := execute(t, newSimulateCmd(testFlags()), "--seeds", "1,2,3")

	var body struct {
		Result struct {
			Runs []struct {
				Seed int64 `json:"seed"`
			} `json:"runs"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(out, &body))
	assert.Len(t, body.Result.Runs, 3)
}
