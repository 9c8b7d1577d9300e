package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"loanaudit/domain/provenance"
	"loanaudit/domain/run"
)

func TestBuildEntryQuery(t *testing.T) {
	query, args := buildEntryQuery(provenance.Filter{})
	assert.Equal(t, "SELECT id, recorded_at, action, description, actor, run_id FROM provenance_entries ORDER BY seq ASC", query)
	assert.Empty(t, args)

	query, args = buildEntryQuery(provenance.Filter{Action: provenance.ActionCleaning, RunID: "r-1", Limit: 5})
	assert.Contains(t, query, "WHERE action = $1 AND run_id = $2")
	assert.Contains(t, query, "ORDER BY seq ASC LIMIT $3")
	assert.Equal(t, []interface{}{"Data Cleaning & Preprocessing", "r-1", 5}, args)
}

func TestBuildRunQuery(t *testing.T) {
	query, args := buildRunQuery(run.Filter{Stage: run.StageSimulation, Limit: 10})
	assert.Contains(t, query, "FROM audit_runs WHERE stage = $1 ORDER BY created_at DESC LIMIT $2")
	assert.Equal(t, []interface{}{"simulation", 10}, args)

	query, args = buildRunQuery(run.Filter{})
	assert.NotContains(t, query, "WHERE")
	assert.NotContains(t, query, "LIMIT")
	assert.Empty(t, args)
}
