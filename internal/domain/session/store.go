// Package session keeps the per-session registry of document indices and
// evicts idle sessions lazily, on request.
package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/index"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

// DefaultTTL is how long a session survives without access.
const DefaultTTL = 30 * time.Minute

// Snapshot is a consistent, copied view of one session.
// Documents are ordered by creation time, then id.
type Snapshot struct {
	ID           string
	Documents    []*index.DocumentIndex
	LastAccessed time.Time
}

// Empty reports whether the session has no retrievable content.
func (s Snapshot) Empty() bool {
	return len(s.Documents) == 0
}

// Infos describes the snapshot's documents in order.
func (s Snapshot) Infos() []entities.DocumentInfo {
	out := make([]entities.DocumentInfo, len(s.Documents))
	for i, d := range s.Documents {
		out[i] = d.Info()
	}
	return out
}

type session struct {
	id           string
	docs         map[string]*index.DocumentIndex
	lastAccessed time.Time
}

func (s *session) snapshot() Snapshot {
	docs := make([]*index.DocumentIndex, 0, len(s.docs))
	for _, d := range s.docs {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt().Equal(docs[j].CreatedAt()) {
			return docs[i].CreatedAt().Before(docs[j].CreatedAt())
		}
		return docs[i].ID() < docs[j].ID()
	})
	return Snapshot{ID: s.id, Documents: docs, LastAccessed: s.lastAccessed}
}

func (s *session) release() []*index.DocumentIndex {
	docs := make([]*index.DocumentIndex, 0, len(s.docs))
	for _, d := range s.docs {
		docs = append(docs, d)
	}
	s.docs = map[string]*index.DocumentIndex{}
	return docs
}

// Store maps session ids to their documents.
// A single mutex guards the session map and every document map.
type Store struct {
	mu        sync.Mutex
	sessions  map[string]*session
	ttl       time.Duration
	now       func() time.Time
	observers []ports.SessionObserver
	logger    *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithObserver registers an observer for session transitions.
func WithObserver(o ports.SessionObserver) Option {
	return func(s *Store) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore creates an empty store. A ttl <= 0 disables expiry.
func NewStore(ttl time.Duration, opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*session),
		ttl:      ttl,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the idle timeout.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Len returns the number of sessions held, live or not yet swept.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// GetOrCreate returns the live session for id, creating an empty one when
// it is absent or expired. An empty id generates a new one.
func (s *Store) GetOrCreate(ctx context.Context, id string) Snapshot {
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	now := s.now()
	sess, created, dropped := s.liveOrNew(id, now)
	s.touchLocked(sess, now)
	snap := sess.snapshot()
	s.mu.Unlock()

	s.release(ctx, id, dropped)
	if dropped != nil {
		s.notify(ctx, entities.SessionEvent{Kind: entities.SessionExpired, SessionID: id})
	}
	if created {
		s.notify(ctx, entities.SessionEvent{Kind: entities.SessionCreated, SessionID: id, LastAccessed: snap.LastAccessed})
	} else {
		s.notify(ctx, touchedEvent(snap))
	}
	return snap
}

// Get returns the session if it is live and touches it.
// An expired session is evicted and reported absent.
func (s *Store) Get(ctx context.Context, id string) (Snapshot, bool) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return Snapshot{}, false
	}
	now := s.now()
	if s.expired(sess, now) {
		delete(s.sessions, id)
		dropped := sess.release()
		s.mu.Unlock()

		s.release(ctx, id, dropped)
		s.notify(ctx, entities.SessionEvent{Kind: entities.SessionExpired, SessionID: id})
		return Snapshot{}, false
	}
	s.touchLocked(sess, now)
	snap := sess.snapshot()
	s.mu.Unlock()

	s.notify(ctx, touchedEvent(snap))
	return snap, true
}

// Touch refreshes lastAccessed of a live session. It reports whether the
// session was live.
func (s *Store) Touch(ctx context.Context, id string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	now := s.now()
	if s.expired(sess, now) {
		s.mu.Unlock()
		return false
	}
	s.touchLocked(sess, now)
	snap := sess.snapshot()
	s.mu.Unlock()

	s.notify(ctx, touchedEvent(snap))
	return true
}

// AddDocument attaches doc to the session, creating the session when absent.
// An empty id generates a new one. It returns the session id.
func (s *Store) AddDocument(ctx context.Context, id string, doc *index.DocumentIndex) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("add document: %w", entities.ErrEmptyInput)
	}
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	now := s.now()
	sess, created, dropped := s.liveOrNew(id, now)
	if _, exists := sess.docs[doc.ID()]; exists {
		s.mu.Unlock()
		s.release(ctx, id, dropped)
		return "", fmt.Errorf("document %s: %w", doc.ID(), entities.ErrDuplicateDocument)
	}
	sess.docs[doc.ID()] = doc
	s.touchLocked(sess, now)
	count := len(sess.docs)
	last := sess.lastAccessed
	s.mu.Unlock()

	s.release(ctx, id, dropped)
	if dropped != nil {
		s.notify(ctx, entities.SessionEvent{Kind: entities.SessionExpired, SessionID: id})
	}
	if created {
		s.notify(ctx, entities.SessionEvent{Kind: entities.SessionCreated, SessionID: id, LastAccessed: last})
	}
	s.notify(ctx, entities.SessionEvent{
		Kind:          entities.SessionDocument,
		SessionID:     id,
		DocumentID:    doc.ID(),
		DocumentCount: count,
		LastAccessed:  last,
	})
	return id, nil
}

// Reset removes the session and releases its indices. It reports whether a
// session existed.
func (s *Store) Reset(ctx context.Context, id string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.sessions, id)
	dropped := sess.release()
	s.mu.Unlock()

	s.release(ctx, id, dropped)
	s.notify(ctx, entities.SessionEvent{Kind: entities.SessionReset, SessionID: id})
	return true
}

// SweepExpired removes every session idle for longer than the TTL and
// returns how many were removed.
func (s *Store) SweepExpired(ctx context.Context) int {
	if s.ttl <= 0 {
		return 0
	}

	type expiredSession struct {
		id   string
		docs []*index.DocumentIndex
	}

	s.mu.Lock()
	now := s.now()
	var gone []expiredSession
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
			gone = append(gone, expiredSession{id: id, docs: sess.release()})
		}
	}
	s.mu.Unlock()

	for _, g := range gone {
		s.release(ctx, g.id, g.docs)
		s.notify(ctx, entities.SessionEvent{Kind: entities.SessionExpired, SessionID: g.id})
	}
	if len(gone) > 0 {
		s.logger.Debug("swept expired sessions", zap.Int("count", len(gone)))
	}
	return len(gone)
}

// Status peeks at a session without touching it.
func (s *Store) Status(id string) entities.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := entities.Status{SessionID: id, Documents: []entities.DocumentInfo{}}
	sess, ok := s.sessions[id]
	if !ok || s.expired(sess, s.now()) {
		return st
	}
	snap := sess.snapshot()
	st.Documents = snap.Infos()
	st.DocumentCount = len(st.Documents)
	st.Loaded = st.DocumentCount > 0
	st.LastAccessed = snap.LastAccessed
	return st
}

// liveOrNew returns the live session for id or installs a fresh one. When an
// expired session is replaced its documents are returned for release.
func (s *Store) liveOrNew(id string, now time.Time) (*session, bool, []*index.DocumentIndex) {
	var dropped []*index.DocumentIndex
	if sess, ok := s.sessions[id]; ok {
		if !s.expired(sess, now) {
			return sess, false, nil
		}
		dropped = sess.release()
	}
	sess := &session{id: id, docs: make(map[string]*index.DocumentIndex), lastAccessed: now}
	s.sessions[id] = sess
	return sess, true, dropped
}

func (s *Store) expired(sess *session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.lastAccessed) > s.ttl
}

func (s *Store) touchLocked(sess *session, now time.Time) {
	if now.After(sess.lastAccessed) {
		sess.lastAccessed = now
	}
}

func (s *Store) release(ctx context.Context, sessionID string, docs []*index.DocumentIndex) {
	for _, d := range docs {
		if err := d.Release(ctx); err != nil {
			s.logger.Warn("releasing document index",
				zap.String("session_id", sessionID),
				zap.String("document_id", d.ID()),
				zap.Error(err))
		}
	}
}

func touchedEvent(snap Snapshot) entities.SessionEvent {
	return entities.SessionEvent{
		Kind:          entities.SessionTouched,
		SessionID:     snap.ID,
		DocumentCount: len(snap.Documents),
		LastAccessed:  snap.LastAccessed,
	}
}

func (s *Store) notify(ctx context.Context, event entities.SessionEvent) {
	for _, o := range s.observers {
		o.OnSessionEvent(ctx, event)
	}
}
