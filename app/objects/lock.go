package objects

import (
	"fmt"
	"time"

	"portarium/app/db/models"
	"portarium/pkg/contextx"
	"portarium/pkg/log"

	"github.com/google/uuid"
)

type NamedLock struct {
	*models.NamedLock
	ContextObject
	PersistentObject
}

func (l *NamedLock) Save(ctx *contextx.Context) error {
	if !l.IsCreated() {
		l.CreatedAt = time.Now().UTC()
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		l.UpdatedAt = l.CreatedAt
	} else {
		l.UpdatedAt = time.Now().UTC()
	}

	if err := l.DB(ctx).Save(l.NamedLock).Error; err != nil {
		return err
	}
	l.SetContext(ctx)
	l.SetCreated()
	return nil
}

func (l *NamedLock) Delete(ctx *contextx.Context) error {
	if !l.IsCreated() {
		return fmt.Errorf("object %s isn't a persistent object, can't delete it", l.ID)
	}
	return l.DB(ctx).Where("id = ?", l.ID).Delete(&models.NamedLock{}).Error
}

func NewNamedLock() *NamedLock {
	return &NamedLock{NamedLock: &models.NamedLock{}}
}

// WithNamedLock serializes callbacks on a name through the unique index on
// named locks. Evidence appends for one aggregate go through here: concurrent
// appends to one chain are a race on the previous-hash link.
func WithNamedLock(ctx *contextx.Context, name string, callback func() error) error {
	locker := NewNamedLock()
	locker.Name = name
	err := locker.Save(ctx)
	if err != nil {
		return err
	}

	err = callback()
	delErr := locker.Delete(ctx)
	if delErr != nil {
		log.Warnf(ctx, "clear lock %s failed, error: %s", name, delErr.Error())
	}
	return err
}
