// Package agents loads markdown agent definitions. A definition is a
// markdown file with YAML front matter (name, description, tier hint); the
// body becomes the agent's system prompt.
package agents

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"github.com/lifeos/lifeosd/internal/logging"
)

// Agent is one loaded definition.
type Agent struct {
	Name         string
	Description  string
	Tier         string // optional tier hint, informational only
	SystemPrompt string
}

// Store holds the loaded agent definitions. Definitions load once at
// startup; editing a file requires a restart.
type Store struct {
	agents      map[string]*Agent
	defaultName string
}

// Load reads every .md file in dir. Files that fail to parse are skipped
// with a warning rather than failing startup. A missing directory yields an
// empty store.
func Load(dir, defaultName string) (*Store, error) {
	store := &Store{
		agents:      make(map[string]*Agent),
		defaultName: defaultName,
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Warnf("[Agents] directory %s does not exist, no agents loaded", dir)
			return store, nil
		}
		return nil, fmt.Errorf("failed to read agents directory: %w", err)
	}

	md := goldmark.New(goldmark.WithExtensions(meta.Meta))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		agent, err := parseFile(md, path)
		if err != nil {
			logging.Warnf("[Agents] skipping %s: %v", entry.Name(), err)
			continue
		}
		store.agents[agent.Name] = agent
	}

	logging.Infof("[Agents] loaded %d agent definitions from %s", len(store.agents), dir)
	return store, nil
}

func parseFile(md goldmark.Markdown, path string) (*Agent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	pc := parser.NewContext()
	doc := md.Parser().Parse(text.NewReader(data), parser.WithContext(pc))

	metadata, err := meta.TryGet(pc)
	if err != nil {
		return nil, fmt.Errorf("invalid front matter: %w", err)
	}

	agent := &Agent{
		Name: strings.TrimSuffix(filepath.Base(path), ".md"),
	}
	if name, ok := metadata["name"].(string); ok && name != "" {
		agent.Name = name
	}
	if desc, ok := metadata["description"].(string); ok {
		agent.Description = desc
	}
	if tier, ok := metadata["tier"].(string); ok {
		agent.Tier = tier
	}

	agent.SystemPrompt = promptBody(doc, data)
	if agent.SystemPrompt == "" {
		return nil, fmt.Errorf("empty system prompt")
	}
	return agent, nil
}

// promptBody returns the raw markdown after the front matter. The parser
// consumed the front matter, so the first body block's source position marks
// where the prompt starts.
func promptBody(doc ast.Node, source []byte) string {
	start := -1
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if lines := n.Lines(); lines != nil && lines.Len() > 0 {
			start = lines.At(0).Start
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	if start < 0 {
		return ""
	}
	return strings.TrimSpace(string(source[start:]))
}

// Get returns an agent by name.
func (s *Store) Get(name string) (*Agent, bool) {
	agent, ok := s.agents[name]
	return agent, ok
}

// Default returns the configured default agent, or nil when it isn't
// loaded.
func (s *Store) Default() *Agent {
	return s.agents[s.defaultName]
}

// Resolve returns the named agent, falling back to the default. A nil
// return means no usable agent exists; callers then run without a system
// prompt.
func (s *Store) Resolve(name string) *Agent {
	if name != "" {
		if agent, ok := s.agents[name]; ok {
			return agent
		}
		logging.Warnf("[Agents] unknown agent %q, using default", name)
	}
	return s.Default()
}

// List returns all agents sorted by name.
func (s *Store) List() []*Agent {
	list := make([]*Agent, 0, len(s.agents))
	for _, agent := range s.agents {
		list = append(list, agent)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}
