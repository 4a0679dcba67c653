// Package role defines agent roles, the capability set an agent is hired
// with, and loads the preset role definitions shipped with the binary.
package role

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Strob0t/AgentCorp/internal/domain"
)

//go:embed presets/*.yaml
var presets embed.FS

// Role describes what an agent with this role may do: its prompt, its
// allowed tools, who it can delegate to, and who it reports to.
type Role struct {
	Name         string   `yaml:"name" json:"name"`
	Title        string   `yaml:"title" json:"title"`
	Description  string   `yaml:"description" json:"description"`
	SystemPrompt string   `yaml:"system_prompt" json:"-"`
	DefaultTools []string `yaml:"default_tools" json:"default_tools"`
	CanDelegate  []string `yaml:"can_delegate_to" json:"can_delegate_to"`
	ReportsTo    string   `yaml:"reports_to" json:"reports_to"`
}

// BuildSystemPrompt renders the role's prompt template with company context.
// Unknown placeholders are left untouched.
func (r *Role) BuildSystemPrompt(companyName string, teamMembers []string, businessContext string) string {
	team := "None yet"
	if len(teamMembers) > 0 {
		team = strings.Join(teamMembers, ", ")
	}
	delegates := "None"
	if len(r.CanDelegate) > 0 {
		delegates = strings.Join(r.CanDelegate, ", ")
	}

	prompt := strings.NewReplacer(
		"{title}", r.Title,
		"{company_name}", companyName,
		"{team_members}", team,
		"{delegates}", delegates,
	).Replace(r.SystemPrompt)

	if businessContext != "" {
		prompt += "\n\nBUSINESS CONTEXT:\n" + businessContext
	}
	return prompt
}

// Loader resolves role names to definitions. Custom roles in Dir override
// the embedded presets.
type Loader struct {
	Dir string // optional directory with additional <name>.yaml files
}

// Load returns the role with the given name.
func (l *Loader) Load(name string) (*Role, error) {
	if l.Dir != "" {
		data, err := os.ReadFile(filepath.Join(l.Dir, name+".yaml")) //nolint:gosec // G304: role names come from operator config
		if err == nil {
			return parse(name, data)
		}
	}

	data, err := presets.ReadFile("presets/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("role %q: %w (available: %s)", name, domain.ErrNotFound, strings.Join(l.Available(), ", "))
	}
	return parse(name, data)
}

// Available lists all role names, embedded presets plus custom ones.
func (l *Loader) Available() []string {
	seen := make(map[string]bool)

	entries, _ := presets.ReadDir("presets")
	for _, e := range entries {
		seen[strings.TrimSuffix(e.Name(), ".yaml")] = true
	}
	if l.Dir != "" {
		custom, _ := os.ReadDir(l.Dir)
		for _, e := range custom {
			if strings.HasSuffix(e.Name(), ".yaml") {
				seen[strings.TrimSuffix(e.Name(), ".yaml")] = true
			}
		}
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func parse(name string, data []byte) (*Role, error) {
	var r Role
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse role %q: %w", name, err)
	}
	if r.Name == "" {
		r.Name = name
	}
	if r.ReportsTo == "" {
		r.ReportsTo = "owner"
	}
	return &r, nil
}
