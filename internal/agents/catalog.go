// Package agents holds the catalog of AI agents shown on the dashboard.
// Agents are listed and gated by role here; running them is not implemented.
package agents

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"skrbl/internal/roles"

	"gopkg.in/yaml.v3"
)

var (
	ErrNotFound         = errors.New("agent not found")
	ErrInsufficientRole = errors.New("agent requires a higher role")
)

// Agent describes one catalog entry.
type Agent struct {
	ID          string     `yaml:"id" json:"id"`
	Name        string     `yaml:"name" json:"name"`
	Category    string     `yaml:"category" json:"category"`
	Description string     `yaml:"description" json:"description"`
	MinRole     roles.Role `yaml:"min_role" json:"min_role"`
	Beta        bool       `yaml:"beta" json:"beta"`
}

// FlagName is the feature flag that exposes a beta agent.
func (a Agent) FlagName() string {
	return "agent_" + a.ID
}

// FlagChecker evaluates feature flags for a user.
type FlagChecker interface {
	Enabled(name string, userID uint) bool
}

// DefaultAgents ship with the service and apply when no catalog file is configured.
var DefaultAgents = []Agent{
	{ID: "content-creator", Name: "Content Creator", Category: "content", Description: "Drafts long-form posts and newsletters.", MinRole: roles.User},
	{ID: "social-bot", Name: "Social Bot", Category: "social", Description: "Schedules and writes social posts.", MinRole: roles.User},
	{ID: "ad-creative", Name: "Ad Creative", Category: "marketing", Description: "Generates ad copy variants.", MinRole: roles.User},
	{ID: "analytics", Name: "Analytics", Category: "insights", Description: "Summarizes campaign performance.", MinRole: roles.Parent},
	{ID: "branding", Name: "Branding", Category: "design", Description: "Builds brand voice and palette guides.", MinRole: roles.VIP},
	{ID: "biz-strategy", Name: "Biz Strategy", Category: "strategy", Description: "Plans launches and pricing experiments.", MinRole: roles.VIP},
	{ID: "video-studio", Name: "Video Studio", Category: "content", Description: "Storyboards short-form video.", MinRole: roles.VIP, Beta: true},
	{ID: "founder-console", Name: "Founder Console", Category: "ops", Description: "Cross-tenant operations overview.", MinRole: roles.Founder},
}

// Catalog is an immutable, validated set of agents.
type Catalog struct {
	agents []Agent
	byID   map[string]Agent
}

type catalogFile struct {
	Agents []Agent `yaml:"agents"`
}

// NewCatalog validates agents: ids must be non-empty and unique, and
// min_role must be a known role (empty means user).
func NewCatalog(agents []Agent) (*Catalog, error) {
	c := &Catalog{
		agents: make([]Agent, 0, len(agents)),
		byID:   make(map[string]Agent, len(agents)),
	}
	for i, a := range agents {
		a.ID = strings.TrimSpace(a.ID)
		if a.ID == "" {
			return nil, fmt.Errorf("agent %d: id is required", i)
		}
		if _, dup := c.byID[a.ID]; dup {
			return nil, fmt.Errorf("agent %q: duplicate id", a.ID)
		}
		if a.MinRole == "" {
			a.MinRole = roles.Fallback
		}
		a.MinRole = roles.Normalize(string(a.MinRole))
		if !roles.Known(a.MinRole) {
			return nil, fmt.Errorf("agent %q: unknown min_role %q", a.ID, a.MinRole)
		}
		if a.Name == "" {
			a.Name = a.ID
		}
		c.agents = append(c.agents, a)
		c.byID[a.ID] = a
	}
	return c, nil
}

// Load returns the default catalog when path is empty, otherwise the
// catalog described by the YAML file at path.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return NewCatalog(DefaultAgents)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agents file: %w", err)
	}
	return Parse(data)
}

// Parse reads a catalog from YAML of the form `agents: [{id: ..., min_role: ...}]`.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse agents file: %w", err)
	}
	return NewCatalog(f.Agents)
}

// All returns every agent in catalog order.
func (c *Catalog) All() []Agent {
	out := make([]Agent, len(c.agents))
	copy(out, c.agents)
	return out
}

// Get looks an agent up by id.
func (c *Catalog) Get(id string) (Agent, bool) {
	a, ok := c.byID[id]
	return a, ok
}

// VisibleTo lists the agents a user with role may see, sorted by category
// then name. Beta agents also need their feature flag on for the user.
func (c *Catalog) VisibleTo(role roles.Role, userID uint, flags FlagChecker) []Agent {
	out := make([]Agent, 0, len(c.agents))
	for _, a := range c.agents {
		if c.Authorize(a, role, userID, flags) == nil {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Authorize reports whether role may use a. A beta agent whose flag is off
// is reported as ErrNotFound so it stays hidden.
func (c *Catalog) Authorize(a Agent, role roles.Role, userID uint, flags FlagChecker) error {
	if a.Beta && (flags == nil || !flags.Enabled(a.FlagName(), userID)) {
		return ErrNotFound
	}
	if !roles.AtLeast(role, a.MinRole) {
		return ErrInsufficientRole
	}
	return nil
}
