package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"transitcat/internal/domain"
	"transitcat/internal/render"
)

// Settings is the content of the optional YAML settings file. Keys missing
// from the file keep their defaults.
type Settings struct {
	Routing domain.RoutingSettings `yaml:"routing"`
	Render  render.Settings        `yaml:"render"`
}

func DefaultSettings() Settings {
	return Settings{
		Routing: domain.DefaultRoutingSettings(),
		Render:  render.DefaultSettings(),
	}
}

// LoadSettings reads and validates a settings file. An empty path yields the
// defaults.
func LoadSettings(path string) (Settings, error) {
	settings := DefaultSettings()
	if path == "" {
		return settings, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return settings, fmt.Errorf("read settings: %w", err)
	}
	return ParseSettings(data)
}

func ParseSettings(data []byte) (Settings, error) {
	settings := DefaultSettings()
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("parse settings: %w", err)
	}

	v := validator.New()
	if err := v.Struct(settings.Routing); err != nil {
		return settings, fmt.Errorf("routing settings: %w", err)
	}
	if err := v.Struct(settings.Render); err != nil {
		return settings, fmt.Errorf("render settings: %w", err)
	}
	return settings, nil
}
