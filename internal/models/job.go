package models

import "time"

// Job is a posting in the jobs marketplace.
type Job struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Company     string    `json:"company,omitempty"`
	CreatedBy   string    `json:"created_by"`
	TechStack   []string  `json:"tech_stack"`
	Location    string    `json:"location,omitempty"`
	Remote      bool      `json:"remote"`
	Budget      string    `json:"budget,omitempty"`
	Description string    `json:"description,omitempty"`
	PostedAt    time.Time `json:"posted_at,omitempty"`
	Path        string    `json:"path,omitempty"`
}
