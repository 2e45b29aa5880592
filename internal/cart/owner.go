package cart

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/minhdang/storefront-backend/pkg/errors"
)

// Owner identifies exactly one cart holder: a registered user or an
// anonymous guest session. Construct values with ForUser or ForGuest; the
// zero value is invalid.
type Owner struct {
	userID    *uuid.UUID
	sessionID *string
}

// ForUser addresses the cart of a registered user.
func ForUser(userID uuid.UUID) Owner {
	return Owner{userID: &userID}
}

// ForGuest addresses the cart of an anonymous session.
func ForGuest(sessionID string) Owner {
	sessionID = strings.TrimSpace(sessionID)
	return Owner{sessionID: &sessionID}
}

// UserID returns the owning user id, or nil for a guest owner.
func (o Owner) UserID() *uuid.UUID {
	return o.userID
}

// SessionID returns the owning session id, or nil for a user owner.
func (o Owner) SessionID() *string {
	return o.sessionID
}

func (o Owner) validate() error {
	if o.userID != nil {
		if *o.userID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
		}
		return nil
	}
	if o.sessionID != nil {
		if *o.sessionID == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "session id required")
		}
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "cart owner required")
}

func (o Owner) scope(q *gorm.DB) *gorm.DB {
	if o.userID != nil {
		return q.Where("user_id = ?", *o.userID)
	}
	return q.Where("session_id = ?", *o.sessionID)
}
