package objects

import (
	"portarium/app/db"
	"portarium/pkg/contextx"

	"gorm.io/gorm"
)

// GetDB resolves the connection for a context: the transaction carried by the
// context when one is open, the shared connection otherwise.
func GetDB(ctx *contextx.Context) *gorm.DB {
	if ctx == nil || ctx.GetDB() == nil {
		return db.GetDBConnection()
	}
	return ctx.GetDB().(*gorm.DB)
}

type ContextObject struct {
	ctx *contextx.Context
}

func (c *ContextObject) GetContext() *contextx.Context {
	return c.ctx
}

func (c *ContextObject) SetContext(ctx *contextx.Context) {
	if ctx != nil {
		c.ctx = ctx
	}
}

func (c *ContextObject) DB(ctx *contextx.Context) *gorm.DB {
	if ctx == nil {
		ctx = c.GetContext()
	}
	return GetDB(ctx)
}

type PersistentObject struct {
	isCreated bool
}

func (p *PersistentObject) IsCreated() bool {
	return p.isCreated
}

func (p *PersistentObject) SetCreated() {
	if !p.isCreated {
		p.isCreated = true
	}
}
