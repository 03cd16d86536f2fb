package objects

import (
	"fmt"
	"time"

	"portarium/app/db/models"
	"portarium/app/evidence"
	"portarium/pkg/contextx"
	"portarium/pkg/log"

	"github.com/google/uuid"
)

const (
	AggregateTypeRun = "run"
)

type EvidenceRecord struct {
	*models.EvidenceRecord
	ContextObject
	PersistentObject
}

func (r *EvidenceRecord) ToEntry() evidence.Entry {
	return evidence.Entry{
		Summary:      r.Summary,
		Links:        r.Links,
		PayloadRefs:  r.PayloadRefs,
		PreviousHash: r.PreviousHash,
		HashSha256:   r.HashSha256,
	}
}

func (r *EvidenceRecord) Save(ctx *contextx.Context) error {
	if r.IsCreated() {
		return fmt.Errorf("evidence record %s is append only, refusing to save it twice", r.ID)
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = time.Now().UTC()

	if err := r.DB(ctx).Create(r.EvidenceRecord).Error; err != nil {
		return err
	}
	r.SetContext(ctx)
	r.SetCreated()
	return nil
}

func NewEvidenceRecord() *EvidenceRecord {
	return &EvidenceRecord{EvidenceRecord: &models.EvidenceRecord{}}
}

func NewEvidenceRecordFromDB(ctx *contextx.Context, row *models.EvidenceRecord) *EvidenceRecord {
	if row == nil {
		return nil
	}
	r := &EvidenceRecord{EvidenceRecord: row}
	r.SetContext(ctx)
	r.SetCreated()
	return r
}

func queryEvidenceRows(ctx *contextx.Context, aggregateType, aggregateID string) ([]*models.EvidenceRecord, error) {
	query := GetDB(ctx).Model(&models.EvidenceRecord{}).
		Where("aggregate_type = ?", aggregateType).
		Where("aggregate_id = ?", aggregateID)

	workspaceId := ctx.GetWorkspaceID()
	if workspaceId != "" {
		query = query.Where("workspace_id = ?", workspaceId)
	}

	var rows []*models.EvidenceRecord
	if err := query.Order("seq").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// LoadEvidenceChain reads and verifies an aggregate's chain. A chain that no
// longer verifies comes back as a ChainVerificationError, never as a
// truncated or repaired chain.
func LoadEvidenceChain(ctx *contextx.Context, aggregateType, aggregateID string, hasher evidence.Hasher) ([]evidence.Entry, error) {
	rows, err := queryEvidenceRows(ctx, aggregateType, aggregateID)
	if err != nil {
		return nil, err
	}

	entries := make([]evidence.Entry, 0, len(rows))
	for i, row := range rows {
		if row.Seq != i {
			return nil, fmt.Errorf("evidence chain for %s %s has a gap at seq %d", aggregateType, aggregateID, i)
		}
		entries = append(entries, NewEvidenceRecordFromDB(ctx, row).ToEntry())
	}

	result := evidence.VerifyChain(entries, hasher)
	if !result.OK {
		log.Errorf(ctx, "Evidence chain for %s %s failed verification: %s", aggregateType, aggregateID, result.String())
		return nil, &ChainVerificationError{
			AggregateType: aggregateType,
			AggregateID:   aggregateID,
			Result:        result,
		}
	}
	return entries, nil
}

// AppendEvidence persists entries [from:] of an aggregate's chain. Callers
// hand in the whole chain; entries already persisted are counted, not
// rewritten. Appends for one aggregate must run under WithNamedLock.
func AppendEvidence(ctx *contextx.Context, aggregateType, aggregateID string, chain []evidence.Entry, from int) error {
	workspaceId := ctx.GetWorkspaceID()
	for seq := from; seq < len(chain); seq++ {
		entry := chain[seq]
		record := NewEvidenceRecord()
		record.WorkspaceID = workspaceId
		record.AggregateType = aggregateType
		record.AggregateID = aggregateID
		record.Seq = seq
		record.Summary = entry.Summary
		record.Links = entry.Links
		record.PayloadRefs = entry.PayloadRefs
		record.PreviousHash = entry.PreviousHash
		record.HashSha256 = entry.HashSha256

		if err := record.Save(ctx); err != nil {
			return err
		}
	}
	return nil
}

// CountEvidence returns how many entries of an aggregate's chain are
// persisted, which is also the seq of the next append.
func CountEvidence(ctx *contextx.Context, aggregateType, aggregateID string) (int, error) {
	query := GetDB(ctx).Model(&models.EvidenceRecord{}).
		Where("aggregate_type = ?", aggregateType).
		Where("aggregate_id = ?", aggregateID)

	workspaceId := ctx.GetWorkspaceID()
	if workspaceId != "" {
		query = query.Where("workspace_id = ?", workspaceId)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}
