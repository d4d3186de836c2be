// Package sorter implements interactive sort sessions: an ordered
// image list produced by a filter query, walked one image at a time
// with move, skip and undo actions.
package sorter

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/mirelo/sdsort/internal/filter"
	"github.com/mirelo/sdsort/internal/scanner"
	"github.com/mirelo/sdsort/pkg/db/models"
	"github.com/mirelo/sdsort/pkg/log"
)

// Action verbs accepted by a session.
const (
	ActionMove = "move"
	ActionSkip = "skip"
	ActionUndo = "undo"
)

// historyEntry records one applied action so undo can revert it.
type historyEntry struct {
	action  string
	imageID uint
	from    string
	to      string
}

// Session is an explicit sort-session entity addressed by identifier.
type Session struct {
	ID      string            `json:"id"`
	Folders map[string]string `json:"folders"`

	mu      sync.Mutex
	images  []models.Image
	index   int
	history []historyEntry
}

// State is a point-in-time JSON view of a session.
type State struct {
	ID        string            `json:"id"`
	Total     int               `json:"total"`
	Index     int               `json:"index"`
	Remaining int               `json:"remaining"`
	Folders   map[string]string `json:"folders"`
	Current   *models.Image     `json:"current,omitempty"`
	CanUndo   bool              `json:"can_undo"`
}

// Manager holds sort sessions in a concurrency-safe registry.
type Manager struct {
	engine  *filter.Engine
	scanner *scanner.Scanner
	log     log.LoggerService

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty session manager.
func NewManager(engine *filter.Engine, scan *scanner.Scanner, logger log.LoggerService) *Manager {
	return &Manager{
		engine:   engine,
		scanner:  scan,
		log:      logger,
		sessions: make(map[string]*Session),
	}
}

// Start creates a session over the images matching the filter request.
// Folders maps action keys to destination directories; each is
// validated up front.
func (m *Manager) Start(ctx context.Context, req filter.Request, folders map[string]string) (*Session, error) {
	for key, folder := range folders {
		if err := scanner.ValidateFolderPath(folder, true); err != nil {
			return nil, fmt.Errorf("invalid folder for key '%s': %w", key, err)
		}
	}

	images, err := m.engine.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to query session images: %w", err)
	}

	session := &Session{
		ID:      uuid.NewString(),
		Folders: folders,
		images:  images,
	}

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()

	m.log.Info("Started sort session '%s' with %d images", session.ID, len(images))
	return session, nil
}

// Get returns the session with the given identifier.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	return session, ok
}

// Delete removes a session. Applied moves are not reverted.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	return true
}

// Do applies an action to the session. Move requires a folder key that
// exists in the session's folder map; undo reverts the most recent
// move or skip.
func (m *Manager) Do(ctx context.Context, id, action, folderKey string) (*State, error) {
	session, ok := m.Get(id)
	if !ok {
		return nil, fmt.Errorf("session '%s' not found", id)
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	switch action {
	case ActionMove:
		if err := m.applyMove(ctx, session, folderKey); err != nil {
			return nil, err
		}
	case ActionSkip:
		if session.index >= len(session.images) {
			return nil, fmt.Errorf("session is exhausted")
		}
		session.history = append(session.history, historyEntry{
			action:  ActionSkip,
			imageID: session.images[session.index].ID,
		})
		session.index++
	case ActionUndo:
		if err := m.applyUndo(ctx, session); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown action '%s'", action)
	}

	return session.stateLocked(), nil
}

// StateOf returns the current state of a session.
func (m *Manager) StateOf(id string) (*State, error) {
	session, ok := m.Get(id)
	if !ok {
		return nil, fmt.Errorf("session '%s' not found", id)
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	return session.stateLocked(), nil
}

func (m *Manager) applyMove(ctx context.Context, session *Session, folderKey string) error {
	if session.index >= len(session.images) {
		return fmt.Errorf("session is exhausted")
	}

	folder, ok := session.Folders[folderKey]
	if !ok {
		return fmt.Errorf("unknown folder key '%s'", folderKey)
	}

	img := &session.images[session.index]
	from := img.Path

	newPath, err := m.scanner.MoveImage(ctx, img.ID, img.Path, folder)
	if err != nil {
		return err
	}

	img.Path = newPath
	img.Filename = filepath.Base(newPath)

	session.history = append(session.history, historyEntry{
		action:  ActionMove,
		imageID: img.ID,
		from:    from,
		to:      newPath,
	})
	session.index++
	return nil
}

func (m *Manager) applyUndo(ctx context.Context, session *Session) error {
	if len(session.history) == 0 {
		return fmt.Errorf("nothing to undo")
	}

	entry := session.history[len(session.history)-1]
	session.history = session.history[:len(session.history)-1]
	session.index--

	if entry.action != ActionMove {
		return nil
	}

	restored, err := m.scanner.MoveImage(ctx, entry.imageID, entry.to, filepath.Dir(entry.from))
	if err != nil {
		return fmt.Errorf("failed to revert move: %w", err)
	}

	img := &session.images[session.index]
	img.Path = restored
	img.Filename = filepath.Base(restored)
	return nil
}

func (session *Session) stateLocked() *State {
	state := &State{
		ID:        session.ID,
		Total:     len(session.images),
		Index:     session.index,
		Remaining: len(session.images) - session.index,
		Folders:   session.Folders,
		CanUndo:   len(session.history) > 0,
	}
	if session.index < len(session.images) {
		current := session.images[session.index]
		state.Current = &current
	}
	return state
}
