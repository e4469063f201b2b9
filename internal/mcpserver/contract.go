package mcpserver

// JobPostingContract describes the Markdown job posting format read by the
// jobs catalog. LLM consumers should follow it when posting jobs.
const JobPostingContract = `# devdash Job Posting Contract

Every job posting in the catalog is a Markdown file with YAML frontmatter.

## Structure

` + "```" + `markdown
---
id: J42                         # OPTIONAL – defaults to the file name stem
title: Smart contract audit     # REQUIRED unless the body starts with "# Title"
company: Acme Labs              # OPTIONAL
created_by: Dana                # OPTIONAL – shown in job match notifications
tech_stack:                     # OPTIONAL – matched against profile skills
  - Rust
  - Solana
location: Berlin                # OPTIONAL
remote: true                    # OPTIONAL
budget: "$4,000"                # OPTIONAL
posted_at: 2026-10-01           # OPTIONAL – ISO-8601 date or RFC 3339 time
---

Description in standard Markdown.
` + "```" + `

## Rules

1. **YAML frontmatter is mandatory.** The ` + "```" + `---` + "```" + ` fences must be the first
   thing in the file.
2. **Ids are unique.** A second posting with an existing id is skipped.
3. **tech_stack** drives skill matching. Entries are compared to profile skill
   names case-insensitively; duplicates are dropped. When it is empty, ` + "`" + `tags` + "`" + `
   are used instead.
4. **File paths** end with ` + "`" + `.md` + "`" + ` and use forward slashes.
5. A user is notified about a posting at most once, even if the posting or
   their skills change later.
`
