package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Prompts is the prompt catalog used by the coach usecases.
// Templates use {{name}} placeholders filled by Render.
type Prompts struct {
	Analysis struct {
		System string `yaml:"system"`
		User   string `yaml:"user"`
	} `yaml:"analysis"`
	Interview struct {
		System  string `yaml:"system"`
		Opening string `yaml:"opening"`
		Next    string `yaml:"next"`
	} `yaml:"interview"`
	Evaluation struct {
		System string `yaml:"system"`
		User   string `yaml:"user"`
	} `yaml:"evaluation"`
}

// LoadPrompts returns the embedded catalog, overlaid with the YAML file at path when set.
// Keys missing from the file keep their embedded value.
func LoadPrompts(path string) (Prompts, error) {
	var p Prompts
	if err := yaml.Unmarshal(defaultPrompts, &p); err != nil {
		return Prompts{}, fmt.Errorf("op=config.LoadPrompts: embedded: %w", err)
	}
	if path == "" {
		return p, nil
	}
	// #nosec G304 -- operator supplied prompt file
	content, err := os.ReadFile(path)
	if err != nil {
		return Prompts{}, fmt.Errorf("op=config.LoadPrompts: %w", err)
	}
	if err := yaml.Unmarshal(content, &p); err != nil {
		return Prompts{}, fmt.Errorf("op=config.LoadPrompts: parse %s: %w", path, err)
	}
	return p, nil
}

// Render substitutes {{key}} placeholders in tmpl.
func Render(tmpl string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.TrimSpace(strings.NewReplacer(pairs...).Replace(tmpl))
}
