package models

import (
	"portarium/pkg/gormx"
	"time"
)

var Models = []interface{}{
	&Run{},
	&EvidenceRecord{},
	&OutboxEntry{},
	&NamedLock{},
}

type Run struct {
	ID string `gorm:"primaryKey;size:255;"`
	// 租户隔离范围
	WorkspaceID   string `gorm:"index;size:255"`
	WorkflowID    string `gorm:"index;size:255"`
	CorrelationID string `gorm:"index;size:255"`
	ExecutionTier string `gorm:"size:255"`
	// 发起人
	InitiatedByUserID string `gorm:"index;size:255"`
	Status            string `gorm:"index;size:255"`

	CreatedAt time.Time `gorm:"default:null"`
	UpdatedAt time.Time `gorm:"default:null"`
	// 开始时间
	StartedAt time.Time `gorm:"default:null"`
	// 结束时间
	EndedAt time.Time `gorm:"default:null"`
}

// EvidenceRecord is one row of an aggregate's hash chain. Rows are append
// only: no update or delete path exists anywhere in the codebase, retention
// is a separate WORM concern.
type EvidenceRecord struct {
	ID            string `gorm:"primaryKey;size:255;"`
	WorkspaceID   string `gorm:"index;size:255"`
	AggregateType string `gorm:"index;size:255"`
	AggregateID   string `gorm:"index;size:255"`
	// 链内序号，同一 aggregate 下唯一
	Seq         int                 `gorm:"index"`
	Summary     string              `gorm:"type:mediumtext"`
	Links       gormx.StringMapJson `gorm:"type:mediumtext"`
	PayloadRefs gormx.StringsJson   `gorm:"type:mediumtext"`

	PreviousHash string `gorm:"size:255"`
	HashSha256   string `gorm:"size:255"`

	CreatedAt time.Time `gorm:"default:null"`
}

type OutboxEntry struct {
	ID string `gorm:"primaryKey;size:255;"`
	// CloudEvent 载荷
	Payload    string `gorm:"type:mediumtext"`
	Status     string `gorm:"index;size:255"`
	RetryCount int    `gorm:"default:0"`
	FailReason string `gorm:"type:mediumtext"`
	// 下次重试时间，ISO-8601
	NextRetryAt string `gorm:"index;size:255"`

	// 多实例投递时的租约
	ClaimedBy string    `gorm:"size:255"`
	ClaimedAt time.Time `gorm:"default:null"`

	CreatedAt time.Time `gorm:"default:null"`
	UpdatedAt time.Time `gorm:"default:null"`
}

type NamedLock struct {
	ID        string    `gorm:"primaryKey;size:255;"`
	Name      string    `gorm:"index;size:255;unique"`
	CreatedAt time.Time `gorm:"default:null"`
	UpdatedAt time.Time `gorm:"default:null"`
}
