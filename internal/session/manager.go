package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Abhinay1235/aichatbot-service/internal/observability"
)

// Recorder mirrors history mutations to durable storage. Implementations
// must tolerate appends for session ids they have not seen before.
type Recorder interface {
	AppendTurns(ctx context.Context, sessionID string, turns []Turn) error
	DeleteSession(ctx context.Context, sessionID string) error
}

type entry struct {
	// turnMu serializes whole chat turns for one session. It is held
	// across translation and execution, not just the history mutation.
	turnMu sync.Mutex

	mu        sync.Mutex
	turns     []Turn
	updatedAt time.Time
}

// Manager is the session arena. All reads are served from memory; writes
// go to memory first and then to the recorder, so a recorder failure
// surfaces as an error without losing the in-memory turn.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	recorder Recorder
	logger   *slog.Logger
}

func NewManager(recorder Recorder, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions: map[string]*entry{},
		recorder: recorder,
		logger:   logger,
	}
}

func (m *Manager) lookup(id string, create bool) *entry {
	m.mu.RLock()
	found := m.sessions[id]
	m.mu.RUnlock()
	if found != nil || !create {
		return found
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if found = m.sessions[id]; found == nil {
		found = &entry{}
		m.sessions[id] = found
		observability.SetActiveSessions(len(m.sessions))
	}
	return found
}

// Acquire takes the per-session turn lock, creating the session if
// needed, and returns the release func. Turns for distinct sessions
// proceed in parallel; turns for the same session serialize here.
func (m *Manager) Acquire(id string) func() {
	session := m.lookup(id, true)
	session.turnMu.Lock()
	return session.turnMu.Unlock
}

// Append records turns in memory and mirrors them to the recorder.
// Appending to a removed or unknown session recreates it.
func (m *Manager) Append(ctx context.Context, id string, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range turns {
		if turns[i].Timestamp.IsZero() {
			turns[i].Timestamp = now
		}
	}

	session := m.lookup(id, true)
	session.mu.Lock()
	session.turns = append(session.turns, turns...)
	session.updatedAt = now
	session.mu.Unlock()

	if m.recorder == nil {
		return nil
	}
	if err := m.recorder.AppendTurns(ctx, id, turns); err != nil {
		return fmt.Errorf("record session %s: %w", id, err)
	}
	return nil
}

// Restore seeds a session's history without touching the recorder. Used
// at startup to hydrate the arena from durable storage.
func (m *Manager) Restore(id string, turns []Turn) {
	if len(turns) == 0 {
		return
	}
	session := m.lookup(id, true)
	session.mu.Lock()
	session.turns = append([]Turn(nil), turns...)
	session.updatedAt = turns[len(turns)-1].Timestamp
	session.mu.Unlock()
}

// Window returns the most recent turns, oldest first, capped at max. An
// unknown session yields an empty window.
func (m *Manager) Window(id string, max int) []Turn {
	session := m.lookup(id, false)
	if session == nil || max <= 0 {
		return nil
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	start := 0
	if len(session.turns) > max {
		start = len(session.turns) - max
	}
	return append([]Turn(nil), session.turns[start:]...)
}

// Full returns the complete history, oldest first.
func (m *Manager) Full(id string) []Turn {
	session := m.lookup(id, false)
	if session == nil {
		return nil
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	return append([]Turn(nil), session.turns...)
}

// Remove drops a session from the arena and the recorder. Removing an
// unknown session is a no-op.
func (m *Manager) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	_, existed := m.sessions[id]
	delete(m.sessions, id)
	observability.SetActiveSessions(len(m.sessions))
	m.mu.Unlock()

	if !existed || m.recorder == nil {
		return nil
	}
	if err := m.recorder.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// List returns session summaries, most recently updated first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	infos := make([]Info, 0, len(m.sessions))
	for id, session := range m.sessions {
		session.mu.Lock()
		infos = append(infos, Info{ID: id, Turns: len(session.turns), UpdatedAt: session.updatedAt})
		session.mu.Unlock()
	}
	m.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].UpdatedAt.Equal(infos[j].UpdatedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].UpdatedAt.After(infos[j].UpdatedAt)
	})
	return infos
}
