// Package inbox is the server side of the notification API: a per-user list
// of notifications persisted in the key-value store. The engine talks to it
// in-process or over HTTP through the api package.
package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/devdash/internal/apperr"
	"github.com/starford/devdash/internal/kv"
	"github.com/starford/devdash/internal/models"
)

const (
	listKeyPrefix  = "inbox:"
	ownerKeyPrefix = "inbox-owner:"
)

// CreatedFunc is called after a notification has been stored.
type CreatedFunc func(userID string, n models.Notification)

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// OnCreate registers fn to run after every Create.
func OnCreate(fn CreatedFunc) Option {
	return func(s *Service) { s.onCreate = fn }
}

// Service stores notifications per user.
type Service struct {
	store    kv.Store
	now      func() time.Time
	onCreate CreatedFunc

	mu sync.Mutex
}

// NewService creates an inbox on store.
func NewService(store kv.Store, opts ...Option) *Service {
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the notifications of userID, newest first.
func (s *Service) List(_ context.Context, userID string) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(userID)
}

// Create stores n for userID. The id, read flag and (if unset) timestamp
// and type are assigned here.
func (s *Service) Create(_ context.Context, userID string, n models.Notification) (models.Notification, error) {
	if strings.TrimSpace(userID) == "" {
		return models.Notification{}, fmt.Errorf("inbox: create: empty user id")
	}
	n = n.Clone()
	n.ID = uuid.NewString()
	n.Read = false
	if n.Timestamp.IsZero() {
		n.Timestamp = s.now().UTC()
	}
	if n.Type == "" {
		n.Type = models.NotificationSystem
	}

	s.mu.Lock()
	items, err := s.loadLocked(userID)
	if err == nil {
		items = append([]models.Notification{n}, items...)
		err = s.saveLocked(userID, items)
	}
	if err == nil {
		err = s.store.Set(ownerKeyPrefix+n.ID, userID)
	}
	s.mu.Unlock()
	if err != nil {
		return models.Notification{}, fmt.Errorf("inbox: create: %w", err)
	}

	if s.onCreate != nil {
		s.onCreate(userID, n.Clone())
	}
	return n, nil
}

// MarkRead marks one notification read. Unknown ids yield apperr.ErrNotFound.
func (s *Service) MarkRead(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, err := s.store.Get(ownerKeyPrefix + id)
	if err != nil {
		return fmt.Errorf("inbox: mark read %s: %w", id, err)
	}
	items, err := s.loadLocked(userID)
	if err != nil {
		return err
	}
	for i := range items {
		if items[i].ID == id {
			if items[i].Read {
				return nil
			}
			items[i].Read = true
			return s.saveLocked(userID, items)
		}
	}
	return fmt.Errorf("inbox: mark read %s: %w", id, apperr.ErrNotFound)
}

// MarkAllRead marks every notification of userID read.
func (s *Service) MarkAllRead(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.loadLocked(userID)
	if err != nil {
		return err
	}
	for i := range items {
		items[i].Read = true
	}
	return s.saveLocked(userID, items)
}

func (s *Service) loadLocked(userID string) ([]models.Notification, error) {
	raw, err := s.store.Get(listKeyPrefix + userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return []models.Notification{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("inbox: load %s: %w", userID, err)
	}
	var items []models.Notification
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("inbox: decode %s: %w", userID, err)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Timestamp.After(items[j].Timestamp) })
	return items, nil
}

func (s *Service) saveLocked(userID string, items []models.Notification) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("inbox: encode: %w", err)
	}
	if err := s.store.Set(listKeyPrefix+userID, string(data)); err != nil {
		return fmt.Errorf("inbox: save %s: %w", userID, err)
	}
	return nil
}
