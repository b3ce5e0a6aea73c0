package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tOgg1/margin/internal/debounce"
)

const (
	CurrentVersion = 1

	defaultSaveDebounce = 1 * time.Second
	maxDrafts           = 200
	draftMaxAge         = 30 * 24 * time.Hour
)

// PrefsState is the persisted sidebar state.
type PrefsState struct {
	Version int                     `json:"version"`
	Sort    string                  `json:"sort,omitempty"`
	Theme   string                  `json:"theme,omitempty"`
	LastURI string                  `json:"last_uri,omitempty"`
	Drafts  map[string]ComposeDraft `json:"drafts,omitempty"` // draft key -> unsent compose text
}

// ComposeDraft is unsent compose text for a document or a reply.
type ComposeDraft struct {
	URI       string    `json:"uri"`
	ReplyTo   string    `json:"reply_to,omitempty"`
	Body      string    `json:"body,omitempty"`
	Tags      string    `json:"tags,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Key identifies the draft slot.
func (d ComposeDraft) Key() string {
	return DraftKey(d.URI, d.ReplyTo)
}

// DraftKey builds the slot key for a document and optional parent.
func DraftKey(uri, replyTo string) string {
	uri = strings.TrimSpace(uri)
	replyTo = strings.TrimSpace(replyTo)
	if replyTo == "" {
		return uri
	}
	return uri + "#" + replyTo
}

// Prefs persists PrefsState to a JSON file with debounced writes.
type Prefs struct {
	path     string
	lockPath string

	mu        sync.Mutex
	state     PrefsState
	dirty     bool
	saver     *debounce.Debouncer
	lastWrite time.Time
}

// NewPrefs creates a manager for path. An empty path keeps state in memory.
func NewPrefs(path string) *Prefs {
	path = strings.TrimSpace(path)
	return &Prefs{
		path:     path,
		lockPath: path + ".lock",
		state: PrefsState{
			Version: CurrentVersion,
			Drafts:  make(map[string]ComposeDraft),
		},
		saver: debounce.New(defaultSaveDebounce),
	}
}

// Path returns the state file.
func (p *Prefs) Path() string { return p.path }

// Load reads the state file. A missing or empty file yields defaults.
func (p *Prefs) Load() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.path == "" {
		return nil
	}

	loaded, err := p.loadLocked()
	if err != nil {
		return err
	}
	p.state = loaded
	p.dirty = false
	return nil
}

// Snapshot returns a copy of the current state.
func (p *Prefs) Snapshot() PrefsState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneState(p.state)
}

// SetSort records the preferred sort key.
func (p *Prefs) SetSort(key string) {
	p.set(func(s *PrefsState) bool {
		if s.Sort == key {
			return false
		}
		s.Sort = key
		return true
	})
}

// SetTheme records the preferred theme.
func (p *Prefs) SetTheme(theme string) {
	p.set(func(s *PrefsState) bool {
		if s.Theme == theme {
			return false
		}
		s.Theme = theme
		return true
	})
}

// SetLastURI records the most recently viewed document.
func (p *Prefs) SetLastURI(uri string) {
	uri = strings.TrimSpace(uri)
	p.set(func(s *PrefsState) bool {
		if uri == "" || s.LastURI == uri {
			return false
		}
		s.LastURI = uri
		return true
	})
}

// Draft returns the saved draft for a slot.
func (p *Prefs) Draft(uri, replyTo string) (ComposeDraft, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	draft, ok := p.state.Drafts[DraftKey(uri, replyTo)]
	return draft, ok
}

// SetDraft saves unsent compose text. An empty body deletes the draft.
func (p *Prefs) SetDraft(draft ComposeDraft) {
	key := draft.Key()
	if key == "" {
		return
	}
	if strings.TrimSpace(draft.Body) == "" && strings.TrimSpace(draft.Tags) == "" {
		p.DeleteDraft(draft.URI, draft.ReplyTo)
		return
	}
	if draft.UpdatedAt.IsZero() {
		draft.UpdatedAt = time.Now().UTC()
	}
	p.set(func(s *PrefsState) bool {
		if s.Drafts == nil {
			s.Drafts = make(map[string]ComposeDraft)
		}
		s.Drafts[key] = draft
		return true
	})
}

// DeleteDraft removes a saved draft.
func (p *Prefs) DeleteDraft(uri, replyTo string) {
	key := DraftKey(uri, replyTo)
	p.set(func(s *PrefsState) bool {
		if _, ok := s.Drafts[key]; !ok {
			return false
		}
		delete(s.Drafts, key)
		return true
	})
}

func (p *Prefs) set(fn func(*PrefsState) bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if fn(&p.state) {
		p.markDirtyLocked()
	}
}

// SaveSoon schedules a write.
func (p *Prefs) SaveSoon() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.markDirtyLocked()
}

// Close flushes pending changes.
func (p *Prefs) Close() error {
	p.saver.Cancel()
	p.mu.Lock()
	needsSave := p.dirty
	p.mu.Unlock()
	if !needsSave {
		return nil
	}
	return p.SaveNow()
}

// SaveNow writes the state file immediately.
func (p *Prefs) SaveNow() error {
	p.mu.Lock()
	if p.path == "" {
		p.dirty = false
		p.mu.Unlock()
		return nil
	}
	state := cloneState(p.state)
	p.dirty = false
	p.mu.Unlock()

	state.Version = CurrentVersion
	state = normalizeState(state, time.Now().UTC())

	if err := withFileLock(p.lockPath, func() error {
		return writeAtomicJSON(p.path, state)
	}); err != nil {
		p.mu.Lock()
		p.dirty = true
		p.mu.Unlock()
		return err
	}

	p.mu.Lock()
	p.lastWrite = time.Now().UTC()
	p.mu.Unlock()
	return nil
}

// Dirty reports whether changes are waiting to be written.
func (p *Prefs) Dirty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dirty
}

func (p *Prefs) markDirtyLocked() {
	p.dirty = true
	if p.path == "" {
		return
	}
	p.saver.Trigger(func() {
		_ = p.SaveNow()
	})
}

func (p *Prefs) loadLocked() (PrefsState, error) {
	var out PrefsState
	if err := withFileLock(p.lockPath, func() error {
		payload, err := os.ReadFile(p.path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				out = PrefsState{Version: CurrentVersion}
				return nil
			}
			return err
		}
		if len(payload) == 0 {
			out = PrefsState{Version: CurrentVersion}
			return nil
		}
		if err := json.Unmarshal(payload, &out); err != nil {
			return fmt.Errorf("parse %s: %w", p.path, err)
		}
		return nil
	}); err != nil {
		return PrefsState{}, err
	}

	if out.Version <= 0 {
		out.Version = CurrentVersion
	}
	if out.Drafts == nil {
		out.Drafts = make(map[string]ComposeDraft)
	}
	return out, nil
}

func withFileLock(lockPath string, fn func() error) error {
	if strings.TrimSpace(lockPath) == "" {
		return fn()
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("lock %s: %w", lockPath, err)
	}
	defer func() {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	}()
	return fn()
}

func writeAtomicJSON(path string, state PrefsState) error {
	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// normalizeState drops stale or empty drafts and caps how many are kept,
// newest first.
func normalizeState(state PrefsState, now time.Time) PrefsState {
	if len(state.Drafts) == 0 {
		state.Drafts = make(map[string]ComposeDraft)
		return state
	}

	kept := make([]ComposeDraft, 0, len(state.Drafts))
	for _, draft := range state.Drafts {
		if draft.Key() == "" || strings.TrimSpace(draft.Body) == "" && strings.TrimSpace(draft.Tags) == "" {
			continue
		}
		if !draft.UpdatedAt.IsZero() && now.Sub(draft.UpdatedAt) > draftMaxAge {
			continue
		}
		kept = append(kept, draft)
	}
	if len(kept) > maxDrafts {
		sort.SliceStable(kept, func(i, j int) bool {
			return kept[i].UpdatedAt.After(kept[j].UpdatedAt)
		})
		kept = kept[:maxDrafts]
	}

	state.Drafts = make(map[string]ComposeDraft, len(kept))
	for _, draft := range kept {
		state.Drafts[draft.Key()] = draft
	}
	return state
}

func cloneState(state PrefsState) PrefsState {
	out := state
	if state.Drafts != nil {
		out.Drafts = make(map[string]ComposeDraft, len(state.Drafts))
		for k, v := range state.Drafts {
			out.Drafts[k] = v
		}
	}
	return out
}
