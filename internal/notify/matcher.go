package notify

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/devdash/internal/models"
)

// jobMatchSink atomically records a job in the ledger and emits its
// notification. It reports whether a notification was emitted.
type jobMatchSink interface {
	claimJobMatch(userID string, job models.Job, matched []string) (bool, error)
}

// Matcher emits at most one job_match notification per (user, job) when a
// job tech stack intersects the user's skill names, case-insensitively.
//
// Scan holds no lock of its own: the sink claims each job in the ledger
// atomically, so nested scans started from subscriber callbacks cannot emit
// a job twice.
type Matcher struct {
	ledger *Ledger
	sink   jobMatchSink
	logger *slog.Logger
}

func newMatcher(ledger *Ledger, sink jobMatchSink, logger *slog.Logger) *Matcher {
	return &Matcher{ledger: ledger, sink: sink, logger: logger}
}

// Scan evaluates jobs for userID and returns how many notifications were
// emitted. Jobs already in the ledger are skipped without evaluation, so a
// later skill change never resurrects them. A profile without skills is not
// scanned. Ledger write failures skip that job and are returned joined.
func (m *Matcher) Scan(userID string, p models.UserProfile, jobs []models.Job) (int, error) {
	if userID == "" || len(p.Skills) == 0 {
		return 0, nil
	}
	skills := skillSet(p.Skills)
	if len(skills) == 0 {
		return 0, nil
	}

	known := make(map[string]struct{})
	for _, id := range m.ledger.IDs(userID) {
		known[id] = struct{}{}
	}

	var (
		emitted int
		errs    []error
	)
	for _, job := range jobs {
		if job.ID == "" {
			continue
		}
		if _, done := known[job.ID]; done {
			continue
		}
		matched := matchedSkills(job.TechStack, skills)
		if len(matched) == 0 {
			continue
		}
		ok, err := m.sink.claimJobMatch(userID, job, matched)
		if err != nil {
			m.logger.Warn("notify: job match not recorded",
				slog.String("job_id", job.ID), slog.String("error", err.Error()))
			errs = append(errs, err)
			continue
		}
		known[job.ID] = struct{}{}
		if ok {
			emitted++
			m.logger.Debug("notify: job match emitted",
				slog.String("user_id", userID), slog.String("job_id", job.ID))
		}
	}
	return emitted, errors.Join(errs...)
}

// skillSet maps lower-cased skill names to their display form.
func skillSet(skills []models.Skill) map[string]string {
	out := make(map[string]string, len(skills))
	for _, s := range skills {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			continue
		}
		out[strings.ToLower(name)] = name
	}
	return out
}

// matchedSkills returns the tech stack entries the user has, in stack order.
func matchedSkills(stack []string, skills map[string]string) []string {
	var out []string
	for _, tech := range stack {
		if _, ok := skills[strings.ToLower(strings.TrimSpace(tech))]; ok {
			out = append(out, tech)
		}
	}
	return out
}

func jobMatchNotification(id string, job models.Job, matched []string, now time.Time) models.Notification {
	creator := job.CreatedBy
	if creator == "" {
		creator = job.Company
	}
	if creator == "" {
		creator = "a client"
	}
	return models.Notification{
		ID:    id,
		Title: "New Job Match: " + job.Title,
		Message: fmt.Sprintf("%s posted a job that matches your skills: %s.",
			creator, strings.Join(matched, ", ")),
		Type:      models.NotificationJobMatch,
		Timestamp: now,
		Link:      "/jobs/" + job.ID,
		Metadata: map[string]any{
			"jobId":         job.ID,
			"matchedSkills": matched,
		},
	}
}
