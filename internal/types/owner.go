package types

import (
	"github.com/google/uuid"
)

// Owner identifies who a pipeline row belongs to: an anonymous session or
// an authenticated user, never both and never neither.
type Owner struct {
	SessionID *string
	UserID    *uuid.UUID
}

func SessionOwner(sessionID string) Owner {
	return Owner{SessionID: &sessionID}
}

func UserOwner(userID uuid.UUID) Owner {
	return Owner{UserID: &userID}
}

// Valid reports whether exactly one of the two identities is set.
func (o Owner) Valid() bool {
	hasSession := o.SessionID != nil && *o.SessionID != ""
	hasUser := o.UserID != nil && *o.UserID != uuid.Nil
	return hasSession != hasUser
}

func (o Owner) IsUser() bool {
	return o.UserID != nil && *o.UserID != uuid.Nil
}
