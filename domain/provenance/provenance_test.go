package provenance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanaudit/domain/core"
)

var fixed = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func TestRecorderDefaults(t *testing.T) {
	rec := NewRecorder("", core.FixedClock(fixed))
	e := rec.Record(ActionQuality, "Audited 3 columns.")

	assert.Equal(t, DefaultActor, e.Actor)
	assert.Equal(t, fixed, e.Timestamp)
	assert.NotEmpty(t, string(e.ID))
	assert.NoError(t, e.Validate())
	assert.Equal(t, "analyst", rec.As("analyst").Record(ActionLineage, "x").Actor)
}

func TestLedgerAppendOrderAndFilter(t *testing.T) {
	ctx := context.Background()
	rec := NewRecorder("tester", core.FixedClock(fixed))
	ledger := NewLedger()
	run := core.NewRunID()

	require.NoError(t, ledger.Append(ctx, rec.Record(ActionIngestion, "loaded")))
	require.NoError(t, ledger.Append(ctx, rec.Record(ActionCleaning, "cleaned").WithRun(run)))
	require.NoError(t, ledger.Append(ctx, rec.Record(ActionRiskSim, "simulated").WithRun(run)))

	entries := ledger.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, ActionIngestion, entries[0].Action)
	assert.Equal(t, ActionRiskSim, entries[2].Action)

	byRun, err := ledger.List(ctx, Filter{RunID: run})
	require.NoError(t, err)
	assert.Len(t, byRun, 2)

	limited, err := ledger.List(ctx, Filter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "loaded", limited[0].Description)
}

func TestLedgerRejectsInvalidEntries(t *testing.T) {
	ledger := NewLedger()
	rec := NewRecorder("tester", nil)

	err := ledger.Append(context.Background(), rec.Record(ActionLineage, "   "))
	assert.True(t, errors.Is(err, core.ErrEmptyDescription))

	err = ledger.Append(context.Background(), rec.Record("Something Else", "x"))
	assert.Error(t, err)
	assert.Equal(t, 0, ledger.Len())
}

func TestLedgerConcurrentAppends(t *testing.T) {
	ledger := NewLedger()
	rec := NewRecorder("tester", nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = ledger.Append(context.Background(), rec.Record(ActionQuality, "audit"))
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, ledger.Len())
}

func TestParseActionKind(t *testing.T) {
	k, err := ParseActionKind("Bias Detection & Analysis")
	require.NoError(t, err)
	assert.Equal(t, ActionBias, k)

	_, err = ParseActionKind("bias")
	assert.Error(t, err)
}
