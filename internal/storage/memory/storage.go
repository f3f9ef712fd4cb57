package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/mcoot/chessmatch-go/internal/model"
	"github.com/mcoot/chessmatch-go/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	identities map[model.ConnID]*model.Identity
	nameIndex  map[string]model.ConnID
	nameKeys   map[model.ConnID]string
	order      []model.ConnID

	sessions    map[model.SessionID]*model.Session
	codeIndex   map[string]model.SessionID
	connIndex   map[model.ConnID]map[model.SessionID]struct{}
	sessionConn map[model.SessionID][]model.ConnID
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		identities:  make(map[model.ConnID]*model.Identity),
		nameIndex:   make(map[string]model.ConnID),
		nameKeys:    make(map[model.ConnID]string),
		sessions:    make(map[model.SessionID]*model.Session),
		codeIndex:   make(map[string]model.SessionID),
		connIndex:   make(map[model.ConnID]map[model.SessionID]struct{}),
		sessionConn: make(map[model.SessionID][]model.ConnID),
	}
}

var _ storage.Storage = (*Storage)(nil)

// Identity operations

func (s *Storage) SaveIdentity(ctx context.Context, identity *model.Identity, nameKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.nameKeys[identity.ID]; ok && old != nameKey {
		delete(s.nameIndex, old)
	}
	if _, ok := s.identities[identity.ID]; !ok {
		s.order = append(s.order, identity.ID)
	}
	s.identities[identity.ID] = identity
	s.nameIndex[nameKey] = identity.ID
	s.nameKeys[identity.ID] = nameKey
	return nil
}

func (s *Storage) GetIdentity(ctx context.Context, id model.ConnID) (*model.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identity, ok := s.identities[id]
	if !ok {
		return nil, model.ErrIdentityNotFound
	}
	return identity, nil
}

func (s *Storage) GetIdentityByName(ctx context.Context, nameKey string) (*model.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.nameIndex[nameKey]
	if !ok {
		return nil, model.ErrIdentityNotFound
	}
	return s.identities[id], nil
}

func (s *Storage) DeleteIdentity(ctx context.Context, id model.ConnID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identities[id]; !ok {
		return nil
	}
	delete(s.identities, id)
	delete(s.nameIndex, s.nameKeys[id])
	delete(s.nameKeys, id)
	s.order = slices.DeleteFunc(s.order, func(c model.ConnID) bool { return c == id })
	return nil
}

func (s *Storage) ListIdentities(ctx context.Context) ([]*model.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Identity, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.identities[id])
	}
	return out, nil
}

// Session operations

func (s *Storage) SaveSession(ctx context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.unindexSeats(session.ID)
	s.sessions[session.ID] = session
	if session.InviteCode != "" {
		s.codeIndex[session.InviteCode] = session.ID
	}

	conns := make([]model.ConnID, 0, len(session.Seats))
	for _, seat := range session.Seats {
		set, ok := s.connIndex[seat.Conn]
		if !ok {
			set = make(map[model.SessionID]struct{})
			s.connIndex[seat.Conn] = set
		}
		set[session.ID] = struct{}{}
		conns = append(conns, seat.Conn)
	}
	s.sessionConn[session.ID] = conns
	return nil
}

func (s *Storage) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return session, nil
}

func (s *Storage) GetSessionByCode(ctx context.Context, code string) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.codeIndex[code]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return s.sessions[id], nil
}

func (s *Storage) DeleteSession(ctx context.Context, id model.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil
	}
	if session.InviteCode != "" {
		delete(s.codeIndex, session.InviteCode)
	}
	s.unindexSeats(id)
	delete(s.sessionConn, id)
	delete(s.sessions, id)
	return nil
}

func (s *Storage) InviteCodeExists(ctx context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.codeIndex[code]
	return ok, nil
}

func (s *Storage) SessionsForConn(ctx context.Context, conn model.ConnID) ([]model.SessionID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.connIndex[conn]
	ids := make([]model.SessionID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *Storage) ListSessions(ctx context.Context) ([]*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session)
	}
	return out, nil
}

// unindexSeats drops the reverse-index entries recorded for a session. The
// caller holds the write lock.
func (s *Storage) unindexSeats(id model.SessionID) {
	for _, conn := range s.sessionConn[id] {
		set := s.connIndex[conn]
		delete(set, id)
		if len(set) == 0 {
			delete(s.connIndex, conn)
		}
	}
}
