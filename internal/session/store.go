package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Config controls store behavior.
type Config struct {
	// TTL is how long an idle session survives before Sweep removes it.
	TTL time.Duration

	// LockWait bounds how long WithLock waits for the per-conversation
	// lock before failing with ErrBusy.
	LockWait time.Duration

	// AllowImplicit permits GetOrCreate to create sessions for ids the
	// store has never seen. When false, unknown ids fail with
	// ErrNotFound.
	AllowImplicit bool

	// InitialStep is the dialog step new sessions start on.
	InitialStep string

	// DefaultLanguage seeds new sessions until detection pins one.
	DefaultLanguage string

	Logger *slog.Logger
}

func (c *Config) validate() error {
	if c.TTL <= 0 {
		return errors.New("ttl must be positive")
	}
	if c.LockWait <= 0 {
		return errors.New("lock wait must be positive")
	}
	if c.InitialStep == "" {
		return errors.New("initial step is required")
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// entry pairs a session with its lock. The lock is a 1-buffered channel
// so acquisition can select against a timer and the caller's context.
type entry struct {
	lock  chan struct{}
	state *State
}

// Store is an in-memory session registry safe for concurrent use. The
// map mutex guards lookups and the published state pointers; the per-id
// channel serializes turns for one conversation.
type Store struct {
	cfg Config

	mu       sync.RWMutex
	sessions map[string]*entry

	sweepOnce      sync.Once
	closeOnce      sync.Once
	sweeperStarted atomic.Bool
	stopSweep      chan struct{}
	sweepDone      chan struct{}
}

// NewStore creates a Store. The sweeper does not run until
// StartSweeper is called.
func NewStore(cfg Config) (*Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid session store config: %w", err)
	}
	return &Store{
		cfg:       cfg,
		sessions:  make(map[string]*entry),
		stopSweep: make(chan struct{}),
		sweepDone: make(chan struct{}),
	}, nil
}

// GetOrCreate resolves a conversation id to a copy of its state. An
// empty id mints a new conversation. A non-empty unknown id creates a
// session when AllowImplicit is set and fails with ErrNotFound
// otherwise.
func (s *Store) GetOrCreate(id string) (*State, error) {
	if len(id) > MaxIDLength {
		return nil, fmt.Errorf("%w: exceeds %d characters", ErrInvalidID, MaxIDLength)
	}

	if id == "" {
		id = uuid.NewString()
	} else {
		s.mu.RLock()
		e, ok := s.sessions[id]
		var cp *State
		if ok {
			cp = e.state.Clone()
		}
		s.mu.RUnlock()
		if ok {
			return cp, nil
		}
		if !s.cfg.AllowImplicit {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[id]; ok {
		return e.state.Clone(), nil
	}
	st := s.newState(id)
	s.sessions[id] = &entry{lock: make(chan struct{}, 1), state: st}
	s.cfg.Logger.Debug("session created", "conversation_id", id)
	return st.Clone(), nil
}

// WithLock acquires the per-conversation lock, runs fn on a private copy
// of the state, and commits the copy when fn returns nil. The lock is
// released on every exit path. A failed or cancelled fn publishes
// nothing. Acquisition waits at most LockWait, then fails with ErrBusy;
// ctx cancellation aborts the wait.
func (s *Store) WithLock(ctx context.Context, id string, fn func(*State) error) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidID)
	}

	timer := time.NewTimer(s.cfg.LockWait)
	defer timer.Stop()

	var e *entry
	for {
		s.mu.RLock()
		cur, ok := s.sessions[id]
		s.mu.RUnlock()
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}

		select {
		case cur.lock <- struct{}{}:
		case <-timer.C:
			return fmt.Errorf("%w: %s", ErrBusy, id)
		case <-ctx.Done():
			return ctx.Err()
		}

		// The sweeper may have removed the id while we waited.
		s.mu.RLock()
		still, ok := s.sessions[id]
		s.mu.RUnlock()
		if ok && still == cur {
			e = cur
			break
		}
		<-cur.lock
	}
	defer func() { <-e.lock }()

	s.mu.RLock()
	working := e.state.Clone()
	s.mu.RUnlock()

	if err := fn(working); err != nil {
		return err
	}

	working.LastActive = time.Now()
	s.mu.Lock()
	e.state = working
	s.mu.Unlock()
	return nil
}

// Sweep removes every session idle longer than TTL and reports how many
// were removed. Ids whose lock is currently held are skipped; the next
// sweep sees them again.
func (s *Store) Sweep(now time.Time) int {
	s.mu.RLock()
	candidates := make(map[string]*entry, len(s.sessions))
	for id, e := range s.sessions {
		candidates[id] = e
	}
	s.mu.RUnlock()

	removed := 0
	for id, e := range candidates {
		select {
		case e.lock <- struct{}{}:
		default:
			continue // turn in flight
		}

		s.mu.Lock()
		still, ok := s.sessions[id]
		if ok && still == e && now.Sub(e.state.LastActive) > s.cfg.TTL {
			delete(s.sessions, id)
			removed++
		}
		s.mu.Unlock()

		<-e.lock
	}

	if removed > 0 {
		s.cfg.Logger.Debug("swept idle sessions", "removed", removed)
	}
	return removed
}

// StartSweeper launches the background sweep loop. Safe to call once;
// further calls are no-ops. Close stops the loop.
func (s *Store) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		return
	}
	s.sweepOnce.Do(func() {
		s.sweeperStarted.Store(true)
		go func() {
			defer close(s.sweepDone)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					s.Sweep(time.Now())
				case <-s.stopSweep:
					return
				}
			}
		}()
	})
}

// Close stops the background sweeper and waits for it to exit.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.stopSweep)
	})
	if s.sweeperStarted.Load() {
		<-s.sweepDone
	}
}

// Len reports how many sessions are currently held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Store) newState(id string) *State {
	return &State{
		ConversationID: id,
		CurrentStep:    s.cfg.InitialStep,
		Slots:          make(map[string]string),
		Language:       s.cfg.DefaultLanguage,
		LastActive:     time.Now(),
	}
}
