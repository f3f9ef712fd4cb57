package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"github.com/mcoot/chessmatch-go/internal/dependencies/clock"
	"github.com/mcoot/chessmatch-go/internal/model"
	"github.com/mcoot/chessmatch-go/internal/storage"
)

// MaxNameLength is the longest display name accepted, in runes
const MaxNameLength = 24

// RegistryInterface is the identity surface the relay and HTTP layer depend on
type RegistryInterface interface {
	Register(ctx context.Context, conn model.ConnID, rawName string) (*model.Identity, error)
	Unregister(ctx context.Context, conn model.ConnID) *model.Identity
	Lookup(ctx context.Context, conn model.ConnID) (*model.Identity, bool)
	ListAll(ctx context.Context) []model.RosterEntry
	SetBusy(ctx context.Context, conn model.ConnID, busy bool, session model.SessionID)
	Count(ctx context.Context) int
}

var _ RegistryInterface = (*Registry)(nil)

// Registry tracks logged-in identities and keeps display names unique
// regardless of case
type Registry struct {
	mu      sync.Mutex
	storage storage.Storage
	clock   clock.Clock
	logger  *slog.Logger
}

// New creates a Registry
func New(store storage.Storage, clk clock.Clock, logger *slog.Logger) *Registry {
	return &Registry{
		storage: store,
		clock:   clk,
		logger:  logger.With(slog.String("component", "registry")),
	}
}

// NameKey folds a trimmed display name for uniqueness checks
func NameKey(name string) string {
	return cases.Fold().String(name)
}

// Register logs conn in under rawName. It fails with model.ErrNameTaken when
// another identity holds the same name ignoring case.
func (r *Registry) Register(ctx context.Context, conn model.ConnID, rawName string) (*model.Identity, error) {
	name := strings.TrimSpace(rawName)
	if name == "" {
		return nil, model.ErrNameRequired
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return nil, model.ErrNameTooLong
	}
	key := NameKey(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.storage.GetIdentity(ctx, conn); err == nil {
		return nil, model.ErrAlreadyLoggedIn
	} else if !errors.Is(err, model.ErrIdentityNotFound) {
		return nil, fmt.Errorf("looking up connection: %w", err)
	}

	if _, err := r.storage.GetIdentityByName(ctx, key); err == nil {
		return nil, model.ErrNameTaken
	} else if !errors.Is(err, model.ErrIdentityNotFound) {
		return nil, fmt.Errorf("looking up name: %w", err)
	}

	identity := &model.Identity{
		ID:          conn,
		DisplayName: name,
		JoinedAt:    r.clock.Now(),
	}
	if err := r.storage.SaveIdentity(ctx, identity, key); err != nil {
		return nil, fmt.Errorf("saving identity: %w", err)
	}

	r.logger.Info("identity registered",
		slog.String("conn_id", string(conn)),
		slog.String("display_name", name))

	return copyIdentity(identity), nil
}

// Unregister removes the identity for conn and returns it, or nil if there
// was none
func (r *Registry) Unregister(ctx context.Context, conn model.ConnID) *model.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, err := r.storage.GetIdentity(ctx, conn)
	if err != nil {
		return nil
	}
	if err := r.storage.DeleteIdentity(ctx, conn); err != nil {
		r.logger.Error("failed to delete identity",
			slog.String("conn_id", string(conn)),
			slog.Any("error", err))
		return nil
	}

	r.logger.Info("identity unregistered",
		slog.String("conn_id", string(conn)),
		slog.String("display_name", identity.DisplayName))

	return copyIdentity(identity)
}

// Lookup returns a copy of the identity for conn
func (r *Registry) Lookup(ctx context.Context, conn model.ConnID) (*model.Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, err := r.storage.GetIdentity(ctx, conn)
	if err != nil {
		return nil, false
	}
	return copyIdentity(identity), true
}

// ListAll returns the roster in login order
func (r *Registry) ListAll(ctx context.Context) []model.RosterEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	identities, err := r.storage.ListIdentities(ctx)
	if err != nil {
		r.logger.Error("failed to list identities", slog.Any("error", err))
		return nil
	}
	roster := make([]model.RosterEntry, 0, len(identities))
	for _, identity := range identities {
		roster = append(roster, identity.Entry())
	}
	return roster
}

// SetBusy records whether conn is seated and in which session. Absent
// identities are ignored.
func (r *Registry) SetBusy(ctx context.Context, conn model.ConnID, busy bool, session model.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, err := r.storage.GetIdentity(ctx, conn)
	if err != nil {
		return
	}
	identity.Busy = busy
	identity.SessionID = session
	if !busy {
		identity.SessionID = ""
	}
	if err := r.storage.SaveIdentity(ctx, identity, NameKey(identity.DisplayName)); err != nil {
		r.logger.Error("failed to save identity",
			slog.String("conn_id", string(conn)),
			slog.Any("error", err))
	}
}

// Count returns the number of logged-in identities
func (r *Registry) Count(ctx context.Context) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	identities, err := r.storage.ListIdentities(ctx)
	if err != nil {
		return 0
	}
	return len(identities)
}

func copyIdentity(identity *model.Identity) *model.Identity {
	c := *identity
	return &c
}
