// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes devdash tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/devdash/internal/apperr"
	"github.com/starford/devdash/internal/events"
	"github.com/starford/devdash/internal/jobs"
	"github.com/starford/devdash/internal/models"
	"github.com/starford/devdash/internal/notify"
	"github.com/starford/devdash/internal/parser"
	"github.com/starford/devdash/internal/profile"
	"github.com/starford/devdash/internal/storage"
)

const (
	channelsURI   = "devdash://event-channels"
	jobFormatURI  = "devdash://job-format"
	maxListResult = 50
)

// Deps are the services exposed as tools. Catalog and Postings may be nil;
// create_job_posting then reports an error.
type Deps struct {
	Hub      *events.Hub
	Engine   *notify.Engine
	Profiles *profile.Store
	Catalog  *jobs.Catalog
	Postings storage.Provider
}

// Server wraps the MCP server with devdash tools.
type Server struct {
	mcp  *server.MCPServer
	deps Deps
}

// New creates a new MCP server with all devdash tools registered.
func New(deps Deps) *Server {
	s := &Server{deps: deps}

	s.mcp = server.NewMCPServer(
		"devdash",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notifications",
		mcp.WithDescription("List the current user's notifications, newest first."),
		mcp.WithBoolean("unread_only", mcp.Description("Only return unread notifications")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of entries (default 50)")),
	), s.listNotifications)

	s.mcp.AddTool(mcp.NewTool("unread_count",
		mcp.WithDescription("Number of unread notifications."),
	), s.unreadCount)

	s.mcp.AddTool(mcp.NewTool("mark_notification_read",
		mcp.WithDescription("Mark one notification read, or all of them when id is \"all\"."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Notification id, or \"all\"")),
	), s.markRead)

	s.mcp.AddTool(mcp.NewTool("add_notification",
		mcp.WithDescription("Add a local notification to the current session."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Notification title")),
		mcp.WithString("message", mcp.Description("Notification body")),
		mcp.WithString("type", mcp.Description("Notification type"),
			mcp.Enum("system", "job_match", "community", "message", "session", "achievement")),
		mcp.WithString("link", mcp.Description("Optional in-app link")),
	), s.addNotification)

	s.mcp.AddTool(mcp.NewTool("get_profile",
		mcp.WithDescription("Return the user profile including skills."),
	), s.getProfile)

	s.mcp.AddTool(mcp.NewTool("improve_skill",
		mcp.WithDescription("Raise (or lower) a skill level, clamped to 0..100. "+
			"Unknown skills are added. Profile changes trigger job matching."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Skill name, case-insensitive")),
		mcp.WithNumber("points", mcp.Required(), mcp.Description("Points to add")),
	), s.improveSkill)

	s.mcp.AddTool(mcp.NewTool("list_jobs",
		mcp.WithDescription("List the jobs catalog."),
		mcp.WithString("skill", mcp.Description("Only jobs whose tech stack contains this skill")),
	), s.listJobs)

	s.mcp.AddTool(mcp.NewTool("create_job_posting",
		mcp.WithDescription("Add a Markdown job posting to the catalog. Content MUST follow "+
			"the job posting contract (see get_job_contract or the devdash://job-format resource)."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path for the posting (must end with .md)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content following the posting contract")),
	), s.createJobPosting)

	s.mcp.AddTool(mcp.NewTool("get_job_contract",
		mcp.WithDescription("Returns the job posting format contract."),
	), s.getJobContract)

	s.mcp.AddResource(
		mcp.NewResource(channelsURI, "Event Channels",
			mcp.WithResourceDescription("Bus channel names and the event tags each accepts."),
			mcp.WithMIMEType("application/json"),
		),
		s.readChannelsResource,
	)

	s.mcp.AddResource(
		mcp.NewResource(jobFormatURI, "Job Posting Contract",
			mcp.WithResourceDescription("Markdown format of job postings."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readJobFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) listNotifications(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	unreadOnly := req.GetBool("unread_only", false)
	limit := req.GetInt("limit", maxListResult)
	if limit <= 0 || limit > maxListResult {
		limit = maxListResult
	}

	out := make([]models.Notification, 0, limit)
	for _, n := range s.deps.Engine.Notifications() {
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, n)
		if len(out) == limit {
			break
		}
	}
	return jsonResult(out), nil
}

func (s *Server) unreadCount(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(fmt.Sprintf("%d", s.deps.Engine.UnreadCount())), nil
}

func (s *Server) markRead(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if id == "all" {
		err = s.deps.Engine.MarkAllAsRead(ctx)
	} else {
		err = s.deps.Engine.MarkAsRead(ctx, id)
	}
	switch {
	case errors.Is(err, apperr.ErrNotFound) && id != "all" && !s.known(id):
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	case err != nil:
		return mcp.NewToolResultText(fmt.Sprintf("marked read locally; sync failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("marked read: %s", id)), nil
}

func (s *Server) known(id string) bool {
	for _, n := range s.deps.Engine.Notifications() {
		if n.ID == id {
			return true
		}
	}
	return false
}

func (s *Server) addNotification(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n := s.deps.Engine.Add(models.Notification{
		Title:   title,
		Message: req.GetString("message", ""),
		Type:    models.NotificationType(req.GetString("type", "")),
		Link:    req.GetString("link", ""),
	})
	return jsonResult(n), nil
}

func (s *Server) getProfile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.deps.Profiles.Profile()), nil
}

func (s *Server) improveSkill(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	points, err := req.RequireInt("points")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.deps.Profiles.ImproveSkill(name, points); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	for _, sk := range s.deps.Profiles.Profile().Skills {
		if strings.EqualFold(sk.Name, strings.TrimSpace(name)) {
			return mcp.NewToolResultText(fmt.Sprintf("%s: %d", sk.Name, sk.Level)), nil
		}
	}
	return mcp.NewToolResultText("updated"), nil
}

func (s *Server) listJobs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.deps.Catalog == nil {
		return jsonResult([]models.Job{}), nil
	}
	skill := strings.TrimSpace(req.GetString("skill", ""))
	out := []models.Job{}
	for _, j := range s.deps.Catalog.Jobs() {
		if skill == "" || containsFold(j.TechStack, skill) {
			out = append(out, j)
		}
	}
	return jsonResult(out), nil
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func (s *Server) createJobPosting(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.deps.Catalog == nil || s.deps.Postings == nil {
		return mcp.NewToolResultError("jobs catalog is not configured"), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !strings.HasSuffix(path, ".md") {
		return mcp.NewToolResultError("path must end with .md"), nil
	}

	data := []byte(content)
	job, err := parser.ParseJob(path, data)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, exists := s.deps.Catalog.Get(job.ID); exists {
		return mcp.NewToolResultError(fmt.Sprintf("job already exists: %s", job.ID)), nil
	}
	exists, err := s.deps.Postings.Exists(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if exists {
		return mcp.NewToolResultError(fmt.Sprintf("posting already exists: %s", path)), nil
	}

	if err := s.deps.Postings.Write(path, data); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.deps.Catalog.Load(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.deps.Hub != nil {
		_ = s.deps.Hub.System.Publish(events.JobPosted{Job: job}.Envelope())
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (%s)", path, job.ID)), nil
}

func (s *Server) getJobContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(JobPostingContract), nil
}

type channelInfo struct {
	Name  string   `json:"name"`
	Types []string `json:"types,omitempty"`
}

func (s *Server) channels() []channelInfo {
	var out []channelInfo
	for _, name := range s.deps.Hub.Registry().Names() {
		info := channelInfo{Name: name}
		if d, ok := s.deps.Hub.Domain(name); ok {
			info.Types = d.Types()
		}
		out = append(out, info)
	}
	return out
}

func (s *Server) readChannelsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(s.channels(), "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      channelsURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) readJobFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      jobFormatURI,
			MIMEType: "text/markdown",
			Text:     JobPostingContract,
		},
	}, nil
}
