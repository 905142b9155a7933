// Package store keeps per-session segmentation state in process memory.
//
// Sessions expire after a TTL measured from their last access. A janitor
// goroutine owned by the store sweeps expired sessions on a fixed interval;
// every operation, the sweep included, runs under one exclusive lock so a
// read-with-refresh can never race an eviction.
package store

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hyeonso/bagseek/internal/models"
)

var (
	ErrNotFound        = errors.New("session not found")
	ErrInvalidMetadata = errors.New("invalid session metadata")
)

// Metadata is the required payload for session creation.
type Metadata struct {
	ImagePath string
	Width     int
	Height    int
	Format    string
}

type Store struct {
	mu       sync.Mutex
	sessions map[string]*models.Session

	ttl  time.Duration
	done chan struct{}
	wg   sync.WaitGroup

	now func() time.Time
}

// New creates a store and starts its expiration janitor. Callers must
// Close the store to stop the janitor.
func New(ttl, sweepInterval time.Duration) *Store {
	s := &Store{
		sessions: make(map[string]*models.Session),
		ttl:      ttl,
		done:     make(chan struct{}),
		now:      time.Now,
	}

	s.wg.Add(1)
	go s.janitor(sweepInterval)

	return s
}

func (s *Store) janitor(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.done:
			return
		}
	}
}

func (s *Store) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, session := range s.sessions {
		if now.Sub(session.LastAccess) > s.ttl {
			delete(s.sessions, id)
			slog.Info("Expired session removed", "session_id", id)
		}
	}
}

// Create registers a new session and returns its identifier. When id is
// empty a fresh UUID is generated; upload handlers pass the token they
// already issued so the saved image file and the session share a name.
func (s *Store) Create(meta Metadata, id string) (string, error) {
	if meta.ImagePath == "" || meta.Format == "" || meta.Width <= 0 || meta.Height <= 0 {
		return "", ErrInvalidMetadata
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}

	s.sessions[id] = &models.Session{
		ID:         id,
		ImagePath:  meta.ImagePath,
		Width:      meta.Width,
		Height:     meta.Height,
		Format:     meta.Format,
		LastAccess: s.now(),
	}

	slog.Info("New session created", "session_id", id)
	return id, nil
}

// Get returns a snapshot of the session and refreshes its last-access
// time. The refresh happens under the same lock as the read, so a
// concurrent sweep cannot evict the session between check and refresh.
func (s *Store) Get(id string) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return models.Session{}, ErrNotFound
	}

	session.LastAccess = s.now()
	return snapshot(session), nil
}

// SetLastMask records the most recent mask reference for the session and
// appends it to the mask history.
func (s *Store) SetLastMask(id, maskPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}

	session.LastMaskPath = maskPath
	session.MaskPaths = append(session.MaskPaths, maskPath)
	session.LastAccess = s.now()
	return nil
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}

	delete(s.sessions, id)
	slog.Info("Session deleted", "session_id", id)
	return nil
}

// Count reports the current live session count, for observability only.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Info returns a summary of the session without refreshing last-access.
func (s *Store) Info(id string) (models.SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return models.SessionInfo{}, ErrNotFound
	}

	return models.SessionInfo{
		SessionID:  session.ID,
		ImagePath:  session.ImagePath,
		Width:      session.Width,
		Height:     session.Height,
		Format:     session.Format,
		MaskCount:  len(session.MaskPaths),
		IsExpired:  s.now().Sub(session.LastAccess) > s.ttl,
		LastAccess: session.LastAccess,
	}, nil
}

// Close stops the janitor. Sessions remain readable until process exit.
func (s *Store) Close() {
	close(s.done)
	s.wg.Wait()
}

func snapshot(session *models.Session) models.Session {
	out := *session
	out.MaskPaths = append([]string(nil), session.MaskPaths...)
	return out
}
