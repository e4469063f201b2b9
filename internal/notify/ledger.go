package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/devdash/internal/apperr"
	"github.com/starford/devdash/internal/kv"
)

// LedgerKeyPrefix prefixes the per-user KV key of the job-match ledger.
const LedgerKeyPrefix = "job-match-ledger:"

// Ledger is the persisted set of job ids a user has already been notified
// about. The stored value is a JSON array of ids.
type Ledger struct {
	store  kv.Store
	logger *slog.Logger

	mu sync.Mutex
}

// NewLedger creates a ledger on store.
func NewLedger(store kv.Store, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{store: store, logger: logger}
}

func ledgerKey(userID string) string { return LedgerKeyPrefix + userID }

// IDs returns the recorded job ids for userID in insertion order.
// A missing or corrupt ledger reads as empty.
func (l *Ledger) IDs(userID string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadLocked(userID)
}

// Contains reports whether jobID is recorded for userID.
func (l *Ledger) Contains(userID, jobID string) bool {
	for _, id := range l.IDs(userID) {
		if id == jobID {
			return true
		}
	}
	return false
}

// Claim records jobID for userID and persists the ledger in one step. It
// returns false without writing when the id is already present. When
// persisting fails nothing is recorded and the error is returned.
func (l *Ledger) Claim(userID, jobID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := l.loadLocked(userID)
	for _, id := range ids {
		if id == jobID {
			return false, nil
		}
	}
	ids = append(ids, jobID)
	data, err := json.Marshal(ids)
	if err != nil {
		return false, fmt.Errorf("notify: encode ledger: %w", err)
	}
	if err := l.store.Set(ledgerKey(userID), string(data)); err != nil {
		return false, fmt.Errorf("notify: persist ledger: %w", err)
	}
	return true, nil
}

func (l *Ledger) loadLocked(userID string) []string {
	raw, err := l.store.Get(ledgerKey(userID))
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			l.logger.Warn("notify: ledger read failed, treating as empty",
				slog.String("user_id", userID), slog.String("error", err.Error()))
		}
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		l.logger.Warn("notify: ledger is corrupt, treating as empty",
			slog.String("user_id", userID), slog.String("error", err.Error()))
		return nil
	}
	// Collapse duplicates written by older clients.
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
