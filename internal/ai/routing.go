package ai

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/lifeos/lifeosd/internal/logging"
)

// ProviderCredentials holds API credentials for a provider
type ProviderCredentials struct {
	APIKey  string `yaml:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model,omitempty"`
}

// RoutingConfig is the YAML structure mapping tiers to provider chains and
// classifier rules to tiers. Chain entries are "provider/model" strings.
type RoutingConfig struct {
	Version     string                         `yaml:"version"`
	DefaultTier Tier                           `yaml:"default_tier"`
	Rules       []Rule                         `yaml:"rules"`
	Chains      map[string][]string            `yaml:"chains"`
	Credentials map[string]ProviderCredentials `yaml:"credentials,omitempty"`
}

// floorModel is the chain terminator: local Ollama has no cost gate, so every
// chain that reaches it either succeeds or fails explicitly.
const floorModel = "ollama/llama3.2"

// normalize fills in missing rules and chains and guarantees every chain
// terminates in the local floor.
func (c *RoutingConfig) normalize() {
	if !ValidTier(string(c.DefaultTier)) {
		c.DefaultTier = TierFree
	}
	if len(c.Rules) == 0 {
		c.Rules = DefaultRules()
	}
	if c.Chains == nil {
		c.Chains = make(map[string][]string)
	}
	for _, tier := range []Tier{TierFree, TierUltraCheap, TierProduction, TierCritical} {
		chain := c.Chains[string(tier)]
		if len(chain) == 0 || !strings.HasPrefix(chain[len(chain)-1], "ollama/") {
			chain = append(chain, floorModel)
		}
		c.Chains[string(tier)] = chain
	}
}

// ParseModelID splits a "provider/model" chain entry.
func ParseModelID(modelID string) (providerID, modelName string) {
	if i := strings.Index(modelID, "/"); i >= 0 {
		return modelID[:i], modelID[i+1:]
	}
	return modelID, ""
}

// RoutingStore owns the routing configuration. The config and the classifier
// built from it are immutable snapshots; a reload swaps in a fresh snapshot
// under the lock, so in-flight requests keep the rules they started with.
type RoutingStore struct {
	path string

	mu         sync.RWMutex
	config     *RoutingConfig
	classifier *TierClassifier

	watcher *fsnotify.Watcher
}

// NewRoutingStore loads routing.yaml from path. A missing file is not an
// error; the built-in defaults apply.
func NewRoutingStore(path string) (*RoutingStore, error) {
	s := &RoutingStore{path: path}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *RoutingStore) reload() error {
	config := &RoutingConfig{}
	data, err := os.ReadFile(s.path)
	if err == nil {
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
			return fmt.Errorf("failed to parse routing config %s: %w", s.path, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read routing config: %w", err)
	}
	config.normalize()

	s.mu.Lock()
	s.config = config
	s.classifier = NewTierClassifier(config.Rules, config.DefaultTier)
	s.mu.Unlock()
	return nil
}

// Classifier returns the current classifier snapshot.
func (s *RoutingStore) Classifier() *TierClassifier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.classifier
}

// Chain returns the provider chain for a tier.
func (s *RoutingStore) Chain(tier Tier) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.Chains[string(tier)]
}

// Credentials returns the configured credentials for a provider ID.
func (s *RoutingStore) Credentials(providerID string) ProviderCredentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.Credentials[providerID]
}

// Watch starts watching the routing file's directory and reloads on change.
// Editors write in bursts, so reloads are debounced.
func (s *RoutingStore) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	s.watcher = watcher

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	base := filepath.Base(s.path)
	go func() {
		var debounce *time.Timer
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != base {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					if debounce != nil {
						debounce.Stop()
					}
					debounce = time.AfterFunc(100*time.Millisecond, func() {
						if err := s.reload(); err != nil {
							logging.Errorf("[routing] reload failed: %v", err)
							return
						}
						logging.Infof("[routing] %s reloaded", base)
					})
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Errorf("[routing] watcher error: %v", err)
			}
		}
	}()

	logging.Infof("[routing] watching %s for changes", s.path)
	return nil
}

// Close stops the file watcher.
func (s *RoutingStore) Close() {
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
}
