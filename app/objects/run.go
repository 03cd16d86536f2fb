package objects

import (
	"time"

	"portarium/app/db/models"
	"portarium/app/policy"
	domain "portarium/app/run"
	"portarium/app/run/states"
	"portarium/pkg/contextx"
	"portarium/pkg/log"
)

type Run struct {
	*models.Run
	ContextObject
	PersistentObject
}

func isoToTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func timeToIso(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

// ToDomain maps the row onto the aggregate's view of a run.
func (r *Run) ToDomain() *domain.Run {
	return &domain.Run{
		RunID:             r.ID,
		WorkspaceID:       r.WorkspaceID,
		WorkflowID:        r.WorkflowID,
		CorrelationID:     r.CorrelationID,
		ExecutionTier:     policy.Tier(r.ExecutionTier),
		InitiatedByUserID: r.InitiatedByUserID,
		Status:            states.Status(r.Status),
		CreatedAt:         timeToIso(r.CreatedAt),
		StartedAt:         timeToIso(r.StartedAt),
		EndedAt:           timeToIso(r.EndedAt),
	}
}

func (r *Run) ApplyDomain(d *domain.Run) {
	r.ID = d.RunID
	r.WorkspaceID = d.WorkspaceID
	r.WorkflowID = d.WorkflowID
	r.CorrelationID = d.CorrelationID
	r.ExecutionTier = string(d.ExecutionTier)
	r.InitiatedByUserID = d.InitiatedByUserID
	r.Status = string(d.Status)
	if r.CreatedAt.IsZero() {
		r.CreatedAt = isoToTime(d.CreatedAt)
	}
	r.StartedAt = isoToTime(d.StartedAt)
	r.EndedAt = isoToTime(d.EndedAt)
}

func (r *Run) Save(ctx *contextx.Context) error {
	if !r.IsCreated() {
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now().UTC()
		}
		r.UpdatedAt = r.CreatedAt
	} else {
		r.UpdatedAt = time.Now().UTC()
	}

	if err := r.DB(ctx).Save(r.Run).Error; err != nil {
		return err
	}
	r.SetContext(ctx)
	r.SetCreated()
	return nil
}

func (r *Run) Update(ctx *contextx.Context, fields ...string) error {
	r.UpdatedAt = time.Now().UTC()
	fields = append(fields, "updated_at")

	result := r.DB(ctx).Model(r.Run).Select(fields).Updates(r.Run)
	if result.Error != nil {
		log.Errorf(ctx, "Save run %s error: %v", r.ID, result.Error.Error())
		return result.Error
	}
	log.Debugf(ctx, "Update run %s affected %d rows", r.ID, result.RowsAffected)
	return nil
}

func NewRun() *Run {
	return &Run{Run: &models.Run{}}
}

func NewRunFromDomain(d *domain.Run) *Run {
	r := NewRun()
	r.ApplyDomain(d)
	return r
}

func NewRunFromDB(ctx *contextx.Context, row *models.Run) *Run {
	if row == nil {
		return nil
	}
	r := &Run{Run: row}
	r.SetContext(ctx)
	r.SetCreated()
	return r
}

// QueryRuns lists a workspace's runs, optionally filtered by status. Admin
// contexts see across workspaces.
func QueryRuns(ctx *contextx.Context, status interface{}) ([]*Run, error) {
	query := GetDB(ctx).Model(&models.Run{})

	workspaceId := ctx.GetWorkspaceID()
	if workspaceId != "" {
		query = query.Where("workspace_id = ?", workspaceId)
	}
	if status != nil {
		query = query.Where("status = ?", status.(string))
	}

	var rows []*models.Run
	if err := query.Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}

	var runs []*Run
	for _, row := range rows {
		runs = append(runs, NewRunFromDB(ctx, row))
	}
	return runs, nil
}

func QueryRunByID(ctx *contextx.Context, id string) (*Run, error) {
	query := GetDB(ctx).Model(&models.Run{}).Where("id = ?", id)

	workspaceId := ctx.GetWorkspaceID()
	if workspaceId != "" {
		query = query.Where("workspace_id = ?", workspaceId)
	}

	row := &models.Run{}
	err := query.First(row).Error
	if IsNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return NewRunFromDB(ctx, row), nil
}
