package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	gogithub "github.com/google/go-github/v69/github"

	"github.com/lifeos/lifeosd/internal/logging"
)

// maxFileContent caps how much of a repository file is returned to the
// model. Larger files are truncated with a marker.
const maxFileContent = 48 * 1024

// RepoTool reads files and lists directories in the configured GitHub
// repository. Read-only by construction.
type RepoTool struct {
	client *gogithub.Client
	owner  string
	repo   string
}

// NewRepoTool creates the repository tool. An empty token gives an
// unauthenticated client, which works for public repositories.
func NewRepoTool(owner, repo, token string) *RepoTool {
	client := gogithub.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &RepoTool{
		client: client,
		owner:  owner,
		repo:   repo,
	}
}

// Name returns the tool's unique name
func (t *RepoTool) Name() string {
	return "repo"
}

// Description returns a description for the model
func (t *RepoTool) Description() string {
	return fmt.Sprintf("Read files and list directories in the %s/%s repository. "+
		"Use action \"read\" with a file path, or action \"list\" with a directory path (\"\" for the root).",
		t.owner, t.repo)
}

// Schema returns the JSON schema for the tool's input
func (t *RepoTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"action": {
				"type": "string",
				"enum": ["read", "list"],
				"description": "read a file or list a directory"
			},
			"path": {
				"type": "string",
				"description": "path within the repository"
			},
			"ref": {
				"type": "string",
				"description": "branch, tag, or commit (default branch when omitted)"
			}
		},
		"required": ["action"]
	}`)
}

type repoInput struct {
	Action string `json:"action"`
	Path   string `json:"path"`
	Ref    string `json:"ref"`
}

// Execute runs the tool with the given input
func (t *RepoTool) Execute(ctx context.Context, input json.RawMessage) (*ToolResult, error) {
	var in repoInput
	if err := json.Unmarshal(input, &in); err != nil {
		return &ToolResult{Content: fmt.Sprintf("invalid input: %v", err), IsError: true}, nil
	}

	opts := &gogithub.RepositoryContentGetOptions{Ref: in.Ref}

	switch in.Action {
	case "read":
		return t.readFile(ctx, in.Path, opts)
	case "list":
		return t.listDir(ctx, in.Path, opts)
	default:
		return &ToolResult{Content: fmt.Sprintf("unknown action %q, use read or list", in.Action), IsError: true}, nil
	}
}

func (t *RepoTool) readFile(ctx context.Context, path string, opts *gogithub.RepositoryContentGetOptions) (*ToolResult, error) {
	if path == "" {
		return &ToolResult{Content: "read requires a file path", IsError: true}, nil
	}

	file, _, resp, err := t.client.Repositories.GetContents(ctx, t.owner, t.repo, path, opts)
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("failed to read %s: %v", path, err), IsError: true}, nil
	}
	checkRateLimit(resp)
	if file == nil {
		return &ToolResult{Content: fmt.Sprintf("%s is a directory, use action list", path), IsError: true}, nil
	}

	content, err := file.GetContent()
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("failed to decode %s: %v", path, err), IsError: true}, nil
	}

	if len(content) > maxFileContent {
		content = content[:maxFileContent] + fmt.Sprintf("\n... [truncated, %d bytes total]", file.GetSize())
	}
	return &ToolResult{Content: content}, nil
}

func (t *RepoTool) listDir(ctx context.Context, path string, opts *gogithub.RepositoryContentGetOptions) (*ToolResult, error) {
	file, dir, resp, err := t.client.Repositories.GetContents(ctx, t.owner, t.repo, path, opts)
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("failed to list %s: %v", path, err), IsError: true}, nil
	}
	checkRateLimit(resp)
	if file != nil {
		return &ToolResult{Content: fmt.Sprintf("%s is a file, use action read", path), IsError: true}, nil
	}

	var sb strings.Builder
	for _, entry := range dir {
		if entry.GetType() == "dir" {
			fmt.Fprintf(&sb, "%s/\n", entry.GetPath())
		} else {
			fmt.Fprintf(&sb, "%s (%d bytes)\n", entry.GetPath(), entry.GetSize())
		}
	}
	if sb.Len() == 0 {
		return &ToolResult{Content: "(empty directory)"}, nil
	}
	return &ToolResult{Content: sb.String()}, nil
}

// checkRateLimit logs a warning when remaining API calls drop below threshold.
func checkRateLimit(resp *gogithub.Response) {
	if resp == nil {
		return
	}
	if resp.Rate.Remaining < 100 {
		logging.Warnf("[Repo] github rate limit low: remaining=%d reset=%v",
			resp.Rate.Remaining, resp.Rate.Reset.Time)
	}
}
