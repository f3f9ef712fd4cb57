package storage

import (
	"context"

	"github.com/mcoot/chessmatch-go/internal/model"
)

// Storage holds identities and sessions along with their secondary indexes.
// Implementations keep the indexes consistent with the primary records on
// every save and delete.
type Storage interface {
	// Identity operations. Names are indexed by their folded form, which the
	// caller supplies.
	SaveIdentity(ctx context.Context, identity *model.Identity, nameKey string) error
	GetIdentity(ctx context.Context, id model.ConnID) (*model.Identity, error)
	GetIdentityByName(ctx context.Context, nameKey string) (*model.Identity, error)
	DeleteIdentity(ctx context.Context, id model.ConnID) error
	// ListIdentities returns identities in the order they were first saved
	ListIdentities(ctx context.Context) ([]*model.Identity, error)

	// Session operations
	SaveSession(ctx context.Context, session *model.Session) error
	GetSession(ctx context.Context, id model.SessionID) (*model.Session, error)
	GetSessionByCode(ctx context.Context, code string) (*model.Session, error)
	DeleteSession(ctx context.Context, id model.SessionID) error
	InviteCodeExists(ctx context.Context, code string) (bool, error)
	SessionsForConn(ctx context.Context, conn model.ConnID) ([]model.SessionID, error)
	ListSessions(ctx context.Context) ([]*model.Session, error)
}
