package repos

import (
	"gorm.io/gorm"

	"github.com/verdantiq/carbonmrv-backend/internal/types"
)

// ownerScope narrows a query to rows owned by the given session or user.
func ownerScope(owner types.Owner) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		if owner.IsUser() {
			return q.Where("user_id = ?", *owner.UserID)
		}
		return q.Where("session_id = ?", *owner.SessionID)
	}
}
