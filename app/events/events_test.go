package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeName(t *testing.T) {
	asserter := assert.New(t)
	asserter.Equal("com.portarium.run.RunStarted.v1", TypeName("run", RunStarted, 1))
	asserter.Equal("com.portarium.workitem.WorkItemClosed.v2", TypeName("workitem", "WorkItemClosed", 2))
}

func TestNewRunEvent(t *testing.T) {
	asserter := assert.New(t)

	event := NewRunEvent(RunStarted, RunTransitionData{
		RunID:         "run-1",
		WorkspaceID:   "ws-1",
		WorkflowID:    "wf-1",
		CorrelationID: "corr-1",
		FromStatus:    "PENDING",
		ToStatus:      "RUNNING",
	})

	asserter.NotEmpty(event.ID)
	asserter.Equal("com.portarium.run.RunStarted.v1", event.Type)
	asserter.Equal(Source, event.Source)
	asserter.Equal("run-1", event.Subject)
	asserter.Equal("ws-1", event.WorkspaceID)
	asserter.NotEmpty(event.Time)
	asserter.Equal("run-1", event.Data["runId"])
	asserter.Equal("PENDING", event.Data["fromStatus"])
	asserter.Equal("RUNNING", event.Data["toStatus"])

	other := NewRunEvent(RunStarted, RunTransitionData{RunID: "run-1"})
	asserter.NotEqual(event.ID, other.ID)
}
