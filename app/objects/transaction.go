package objects

import (
	"portarium/pkg/contextx"

	"gorm.io/gorm"
)

// Transaction runs fc inside one database transaction; the sub-context
// carries the transaction so every objects call inside joins it.
func Transaction(ctx *contextx.Context, fc func(subCtx *contextx.Context) error) error {
	subCtx := ctx.Clone()
	return GetDB(ctx).Transaction(func(tx *gorm.DB) error {
		subCtx.SetDB(tx)
		return fc(subCtx)
	})
}
