// Package parser turns Markdown job postings with YAML frontmatter into
// models.Job values.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/devdash/internal/models"
)

// ErrNoFrontmatter is returned when a posting has no frontmatter block.
var ErrNoFrontmatter = errors.New("parser: missing frontmatter")

// frontmatter mirrors the YAML keys accepted in a posting.
type frontmatter struct {
	ID        string   `yaml:"id"`
	Title     string   `yaml:"title"`
	Company   string   `yaml:"company"`
	CreatedBy string   `yaml:"created_by"`
	TechStack []string `yaml:"tech_stack"`
	Tags      []string `yaml:"tags"`
	Location  string   `yaml:"location"`
	Remote    bool     `yaml:"remote"`
	Budget    string   `yaml:"budget"`
	PostedAt  string   `yaml:"posted_at"`
}

// Split separates the YAML frontmatter (between leading --- delimiters)
// from the Markdown body. ok is false when no complete block is present.
func Split(data []byte) (fm []byte, body string, ok bool) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), false
	}
	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data), false
	}
	afterDelim := rest[idx+1+len(delim):]
	return rest[:idx], strings.TrimLeft(string(afterDelim), "\n\r"), true
}

// ParseJob decodes a posting stored at relPath. The id defaults to the
// filename stem and the title to the first H1 heading of the body.
func ParseJob(relPath string, data []byte) (models.Job, error) {
	raw, body, ok := Split(data)
	if !ok {
		return models.Job{}, fmt.Errorf("%s: %w", relPath, ErrNoFrontmatter)
	}
	var fm frontmatter
	if err := yaml.Unmarshal(raw, &fm); err != nil {
		return models.Job{}, fmt.Errorf("parser: %s: invalid frontmatter: %w", relPath, err)
	}

	job := models.Job{
		ID:          strings.TrimSpace(fm.ID),
		Title:       strings.TrimSpace(fm.Title),
		Company:     fm.Company,
		CreatedBy:   fm.CreatedBy,
		TechStack:   cleanList(fm.TechStack),
		Location:    fm.Location,
		Remote:      fm.Remote,
		Budget:      fm.Budget,
		Description: strings.TrimSpace(body),
		Path:        relPath,
	}
	if job.ID == "" {
		job.ID = strings.TrimSuffix(path.Base(relPath), path.Ext(relPath))
	}
	if job.Title == "" {
		job.Title = firstHeading(body)
	}
	if len(job.TechStack) == 0 {
		job.TechStack = cleanList(fm.Tags)
	}
	if fm.PostedAt != "" {
		t, err := parseTime(fm.PostedAt)
		if err != nil {
			return models.Job{}, fmt.Errorf("parser: %s: posted_at: %w", relPath, err)
		}
		job.PostedAt = t
	}
	if job.Title == "" {
		return models.Job{}, fmt.Errorf("parser: %s: title is required", relPath)
	}
	return job, nil
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

// cleanList trims entries and drops empties and case-insensitive duplicates.
func cleanList(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		k := strings.ToLower(s)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	return out
}

func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
