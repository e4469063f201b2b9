// Package profile owns the current user profile. Every mutation persists the
// whole record and broadcasts the whole record on the profile bus, even when
// the merge changes nothing; subscribers re-render on every update and must
// not rely on diffing.
package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/starford/devdash/internal/apperr"
	"github.com/starford/devdash/internal/bus"
	"github.com/starford/devdash/internal/kv"
	"github.com/starford/devdash/internal/models"
)

// Key is the KV key holding the JSON-encoded profile.
const Key = "profile"

// Default returns the record used when nothing valid is stored.
func Default() models.UserProfile {
	return models.UserProfile{
		ID:         "me",
		Name:       "Alex Developer",
		Username:   "alexdev",
		Email:      "alex@devdash.local",
		Title:      "Full-Stack Engineer",
		Bio:        "Building things with code.",
		Location:   "Remote",
		Level:      1,
		XP:         0,
		Reputation: 0,
		Skills: []models.Skill{
			{Name: "TypeScript", Level: 75},
			{Name: "React", Level: 70},
			{Name: "Go", Level: 40},
		},
	}
}

// Store holds the profile in memory, backed by a kv.Store.
type Store struct {
	kv     kv.Store
	bus    *bus.Bus[models.UserProfile]
	logger *slog.Logger

	mu      sync.Mutex
	loaded  bool
	current models.UserProfile
}

// NewStore creates a profile store publishing on b.
func NewStore(store kv.Store, b *bus.Bus[models.UserProfile], logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: store, bus: b, logger: logger}
}

// Profile returns a copy of the current profile, loading it on first use.
func (s *Store) Profile() models.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()
	return s.current.Clone()
}

// loadLocked decodes the stored record over the defaults. Missing or
// corrupt data yields the defaults.
func (s *Store) loadLocked() {
	if s.loaded {
		return
	}
	s.loaded = true
	s.current = Default()

	raw, err := s.kv.Get(Key)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			s.logger.Warn("profile: read failed, using defaults", slog.String("error", err.Error()))
		}
		return
	}
	p := Default()
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		s.logger.Warn("profile: stored record is corrupt, using defaults", slog.String("error", err.Error()))
		return
	}
	s.current = p
}

// Update merges patch into the profile, persists the result and publishes
// it. The in-memory update and broadcast happen even if persisting fails;
// the persist error is returned.
func (s *Store) Update(patch models.ProfilePatch) error {
	s.mu.Lock()
	s.loadLocked()
	s.current = patch.Apply(s.current)
	snapshot := s.current.Clone()
	persistErr := s.persistLocked(snapshot)
	s.mu.Unlock()

	s.bus.Publish(snapshot)
	return persistErr
}

func (s *Store) persistLocked(p models.UserProfile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("profile: encode: %w", err)
	}
	if err := s.kv.Set(Key, string(data)); err != nil {
		s.logger.Error("profile: persist failed", slog.String("error", err.Error()))
		return fmt.Errorf("profile: persist: %w", err)
	}
	return nil
}

// ImproveSkill raises the named skill by points, clamped to [0,100]. An
// unknown skill is appended at clamp(points). Names match case-insensitively.
func (s *Store) ImproveSkill(name string, points int) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("profile: improve skill: empty name")
	}
	skills := s.Profile().Skills
	found := false
	for i := range skills {
		if strings.EqualFold(skills[i].Name, name) {
			skills[i].Level = clamp(skills[i].Level + points)
			found = true
			break
		}
	}
	if !found {
		skills = append(skills, models.Skill{Name: name, Level: clamp(points)})
	}
	return s.Update(models.ProfilePatch{Skills: &skills})
}

// Subscribe registers fn for every profile broadcast.
func (s *Store) Subscribe(fn func(models.UserProfile)) func() {
	return s.bus.Subscribe(fn)
}

func clamp(v int) int {
	return min(max(v, 0), 100)
}
