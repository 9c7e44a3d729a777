// Package svc wires the service dependencies together. Handlers receive a
// ServiceContext and construct per-request logic from it.
package svc

import (
	"fmt"
	"time"

	"github.com/lifeos/lifeosd/internal/agents"
	"github.com/lifeos/lifeosd/internal/ai"
	"github.com/lifeos/lifeosd/internal/config"
	"github.com/lifeos/lifeosd/internal/db"
	"github.com/lifeos/lifeosd/internal/logging"
	"github.com/lifeos/lifeosd/internal/runner"
	"github.com/lifeos/lifeosd/internal/tools"
)

type ServiceContext struct {
	Config config.Config

	Store         *db.Store
	Conversations *db.ConversationStore

	Routing    *ai.RoutingStore
	Dispatcher *ai.Dispatcher
	Registry   *tools.Registry
	Runner     *runner.Runner
	Agents     *agents.Store
}

// NewServiceContext opens the store, loads the routing configuration and
// agent definitions, and registers every provider and tool the configuration
// enables.
func NewServiceContext(c config.Config) (*ServiceContext, error) {
	store, err := db.NewSQLite(c.Database.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	routing, err := ai.NewRoutingStore(c.Routing.ConfigPath)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to load routing config: %w", err)
	}
	if err := routing.Watch(); err != nil {
		logging.Warnf("[Svc] routing config watch disabled: %v", err)
	}

	agentStore, err := agents.Load(c.Agents.Dir, c.Agents.Default)
	if err != nil {
		routing.Close()
		store.Close()
		return nil, fmt.Errorf("failed to load agents: %w", err)
	}

	dispatcher := ai.NewDispatcher(routing, time.Duration(c.Limits.ProviderTimeoutSeconds)*time.Second)
	registerProviders(dispatcher, routing)

	registry := tools.NewRegistry()
	registry.Register(tools.NewQueryTool(store.DB()))
	if c.Repo.Owner != "" && c.Repo.Name != "" {
		registry.Register(tools.NewRepoTool(c.Repo.Owner, c.Repo.Name, c.Repo.Token))
	}

	run := runner.New(dispatcher, registry,
		c.Limits.MaxIterations,
		time.Duration(c.Limits.ToolTimeoutSeconds)*time.Second)

	return &ServiceContext{
		Config:        c,
		Store:         store,
		Conversations: db.NewConversationStore(store),
		Routing:       routing,
		Dispatcher:    dispatcher,
		Registry:      registry,
		Runner:        run,
		Agents:        agentStore,
	}, nil
}

// registerProviders sets up every provider that has credentials. Ollama
// always registers because it backs the no-cost floor of every chain.
func registerProviders(dispatcher *ai.Dispatcher, routing *ai.RoutingStore) {
	if creds := routing.Credentials("anthropic"); creds.APIKey != "" {
		dispatcher.Register(ai.NewAnthropicProvider(creds.APIKey, creds.Model))
	} else {
		logging.Warnf("[Svc] no anthropic credentials, provider not registered")
	}

	if creds := routing.Credentials("openai"); creds.APIKey != "" {
		dispatcher.Register(ai.NewOpenAIProvider(creds.APIKey, creds.Model))
	} else {
		logging.Warnf("[Svc] no openai credentials, provider not registered")
	}

	if creds := routing.Credentials("gemini"); creds.APIKey != "" {
		dispatcher.Register(ai.NewGeminiProvider(creds.APIKey, creds.Model))
	} else {
		logging.Warnf("[Svc] no gemini credentials, provider not registered")
	}

	ollama := routing.Credentials("ollama")
	if !ai.CheckOllamaAvailable(ollama.BaseURL) {
		logging.Warnf("[Svc] ollama not reachable, local floor models will fail until it starts")
	}
	dispatcher.Register(ai.NewOllamaProvider(ollama.BaseURL, ollama.Model))
}

// Close releases everything the context owns.
func (s *ServiceContext) Close() {
	if s.Routing != nil {
		s.Routing.Close()
	}
	if s.Store != nil {
		if err := s.Store.Close(); err != nil {
			logging.Errorf("[Svc] failed to close database: %v", err)
		}
	}
}
