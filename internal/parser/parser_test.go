package parser

import (
	"errors"
	"testing"
	"time"
)

func TestParseJob_Frontmatter(t *testing.T) {
	src := []byte(`---
id: J1
title: Solana program auditor
company: Chainworks
created_by: Satoshi
tech_stack: [Rust, Solana, rust, " "]
remote: true
posted_at: 2026-03-01
---

Audit on-chain programs.
`)
	job, err := ParseJob("jobs/j1.md", src)
	if err != nil {
		t.Fatalf("ParseJob: %v", err)
	}
	if job.ID != "J1" || job.Title != "Solana program auditor" || job.CreatedBy != "Satoshi" {
		t.Errorf("job = %+v", job)
	}
	if len(job.TechStack) != 2 || job.TechStack[0] != "Rust" || job.TechStack[1] != "Solana" {
		t.Errorf("tech stack = %v", job.TechStack)
	}
	if !job.Remote {
		t.Error("remote = false")
	}
	if !job.PostedAt.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("posted_at = %v", job.PostedAt)
	}
	if job.Description != "Audit on-chain programs." {
		t.Errorf("description = %q", job.Description)
	}
}

func TestParseJob_Defaults(t *testing.T) {
	src := []byte("---\ntags: [Go]\n---\n# Backend engineer\n\nBody")
	job, err := ParseJob("backend-go.md", src)
	if err != nil {
		t.Fatalf("ParseJob: %v", err)
	}
	if job.ID != "backend-go" {
		t.Errorf("id = %q, want filename stem", job.ID)
	}
	if job.Title != "Backend engineer" {
		t.Errorf("title = %q, want H1", job.Title)
	}
	if len(job.TechStack) != 1 || job.TechStack[0] != "Go" {
		t.Errorf("tech stack = %v, want tags fallback", job.TechStack)
	}
}

func TestParseJob_Errors(t *testing.T) {
	if _, err := ParseJob("a.md", []byte("# no frontmatter")); !errors.Is(err, ErrNoFrontmatter) {
		t.Errorf("err = %v, want ErrNoFrontmatter", err)
	}
	if _, err := ParseJob("b.md", []byte("---\ntitle: [unclosed\n---\n")); err == nil {
		t.Error("expected invalid YAML error")
	}
	if _, err := ParseJob("c.md", []byte("---\nid: x\n---\nno heading")); err == nil {
		t.Error("expected missing title error")
	}
	if _, err := ParseJob("d.md", []byte("---\ntitle: T\nposted_at: yesterday\n---\n")); err == nil {
		t.Error("expected posted_at error")
	}
}

func TestSplit_NoClosingDelimiter(t *testing.T) {
	_, body, ok := Split([]byte("---\ntitle: x\n"))
	if ok {
		t.Error("ok = true for unterminated block")
	}
	if body != "---\ntitle: x\n" {
		t.Errorf("body = %q", body)
	}
}
