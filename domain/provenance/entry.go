package provenance

import (
	"fmt"
	"strings"
	"time"

	"loanaudit/domain/core"
)

// ActionKind names the kind of action a ledger entry records
type ActionKind string

const (
	ActionIngestion ActionKind = "Data Ingestion"
	ActionLineage   ActionKind = "Data Lineage Documentation"
	ActionQuality   ActionKind = "Data Quality Audit"
	ActionCleaning  ActionKind = "Data Cleaning & Preprocessing"
	ActionBias      ActionKind = "Bias Detection & Analysis"
	ActionRiskSim   ActionKind = "Risk Simulation Executed"
)

// DefaultActor is used when no operator identity is configured
const DefaultActor = "Risk_Manager_001"

var knownActions = map[ActionKind]bool{
	ActionIngestion: true,
	ActionLineage:   true,
	ActionQuality:   true,
	ActionCleaning:  true,
	ActionBias:      true,
	ActionRiskSim:   true,
}

// ParseActionKind validates an action kind name
func ParseActionKind(s string) (ActionKind, error) {
	k := ActionKind(s)
	if !knownActions[k] {
		return "", fmt.Errorf("unknown action kind %q", s)
	}
	return k, nil
}

// Entry is an immutable audit-log record of one action taken on a dataset
type Entry struct {
	ID          core.EntryID `json:"id"`
	Timestamp   time.Time    `json:"timestamp"`
	Action      ActionKind   `json:"action"`
	Description string       `json:"description"`
	Actor       string       `json:"actor"`
	RunID       core.RunID   `json:"run_id,omitempty"`
}

// Validate checks the entry is well formed before it is appended
func (e Entry) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("entry has no id")
	}
	if !knownActions[e.Action] {
		return fmt.Errorf("unknown action kind %q", e.Action)
	}
	if strings.TrimSpace(e.Description) == "" {
		return core.ErrEmptyDescription
	}
	if strings.TrimSpace(e.Actor) == "" {
		return fmt.Errorf("entry has no actor")
	}
	return nil
}

// WithRun returns a copy of the entry attributed to an audit run
func (e Entry) WithRun(runID core.RunID) Entry {
	e.RunID = runID
	return e
}

func (e Entry) String() string {
	return fmt.Sprintf("[%s] %s (%s): %s", e.Timestamp.Format(core.LedgerTimeFormat), e.Action, e.Actor, e.Description)
}

// Recorder stamps entries with an actor and a clock
type Recorder struct {
	actor string
	clock core.Clock
}

// NewRecorder creates a recorder. Empty actor falls back to DefaultActor, nil clock to the system clock.
func NewRecorder(actor string, clock core.Clock) *Recorder {
	if strings.TrimSpace(actor) == "" {
		actor = DefaultActor
	}
	if clock == nil {
		clock = core.SystemClock
	}
	return &Recorder{actor: actor, clock: clock}
}

// Actor returns the identity stamped on recorded entries
func (r *Recorder) Actor() string { return r.actor }

// Record builds a new entry for an action
func (r *Recorder) Record(action ActionKind, description string) Entry {
	return Entry{
		ID:          core.EntryID(core.NewID()),
		Timestamp:   r.clock(),
		Action:      action,
		Description: description,
		Actor:       r.actor,
	}
}

// Recordf is Record with a formatted description
func (r *Recorder) Recordf(action ActionKind, format string, args ...interface{}) Entry {
	return r.Record(action, fmt.Sprintf(format, args...))
}

// As returns a recorder stamping entries with a different actor
func (r *Recorder) As(actor string) *Recorder {
	return NewRecorder(actor, r.clock)
}
