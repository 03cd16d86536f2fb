package events

const runAggregate = "run"

// Event names for the run aggregate keyed by the status a transition landed
// on. Each event's data block repeats runId/workspaceId plus the edge walked,
// which together are the consumer-side dedup key.
const (
	RunStarted            = "RunStarted"
	RunSucceeded          = "RunSucceeded"
	RunFailed             = "RunFailed"
	RunCancelled          = "RunCancelled"
	RunPaused             = "RunPaused"
	RunResumed            = "RunResumed"
	RunWaitingForApproval = "RunWaitingForApproval"
)

// RunTransitionData is the minimal payload every run lifecycle event carries.
type RunTransitionData struct {
	RunID         string
	WorkspaceID   string
	WorkflowID    string
	CorrelationID string
	FromStatus    string
	ToStatus      string
}

func NewRunEvent(name string, data RunTransitionData) Event {
	return newEvent(runAggregate, name, data.RunID, data.WorkspaceID, map[string]string{
		"runId":         data.RunID,
		"workspaceId":   data.WorkspaceID,
		"workflowId":    data.WorkflowID,
		"correlationId": data.CorrelationID,
		"fromStatus":    data.FromStatus,
		"toStatus":      data.ToStatus,
	})
}
