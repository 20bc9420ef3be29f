package catalog

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/PabloGalante/anima-agent/internal/domain"
)

//go:embed agents.yaml
var presetsYAML []byte

type presetEntry struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Emoji       string `yaml:"emoji"`
	Kind        string `yaml:"type"`
	Featured    bool   `yaml:"featured"`
	Description string `yaml:"desc"`
	InitialText string `yaml:"initialText"`
	Prompt      string `yaml:"prompt"`
}

// ParsePresets decodes a preset list. Ids must be unique and every entry needs
// a name and prompt.
func ParsePresets(data []byte) ([]domain.Agent, error) {
	var entries []presetEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}

	seen := make(map[string]bool, len(entries))
	out := make([]domain.Agent, 0, len(entries))
	for i, e := range entries {
		if e.ID == "" || e.Name == "" || e.Prompt == "" {
			return nil, fmt.Errorf("preset #%d: id, name and prompt are required", i)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("preset #%d: duplicate id %q", i, e.ID)
		}
		seen[e.ID] = true

		out = append(out, domain.Agent{
			ID:            domain.AgentID(e.ID),
			Name:          e.Name,
			PersonaPrompt: e.Prompt,
			Emoji:         e.Emoji,
			Description:   e.Description,
			InitialText:   e.InitialText,
			Kind:          e.Kind,
			Featured:      e.Featured,
		})
	}
	return out, nil
}

// DefaultPresets returns the embedded catalog.
func DefaultPresets() ([]domain.Agent, error) {
	return ParsePresets(presetsYAML)
}
