// Package config loads the optional app-group profiles file. Groups let a
// session target a named bundle of apps ("social", "markets") instead of
// listing package IDs one by one.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/jsai2001/GetYourLifeBack/internal/models"
	"gopkg.in/yaml.v3"
)

// AppGroups maps group names to the apps they contain.
type AppGroups struct {
	Groups map[string][]models.AppID `yaml:"groups"`
}

// LoadAppGroups reads and parses a groups file.
func LoadAppGroups(path string) (*AppGroups, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read app groups file %s: %w", path, err)
	}
	var groups AppGroups
	if err := yaml.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("failed to parse app groups file %s: %w", path, err)
	}
	slog.Debug("app groups loaded", "path", path, "groups", len(groups.Groups))
	return &groups, nil
}

// Names returns the defined group names, sorted.
func (g *AppGroups) Names() []string {
	names := make([]string, 0, len(g.Groups))
	for name := range g.Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve expands group names into a deduplicated app list. Unknown names
// fail so a typo cannot silently weaken a session.
func (g *AppGroups) Resolve(names []string) ([]models.AppID, error) {
	seen := make(map[models.AppID]struct{})
	var apps []models.AppID
	for _, name := range names {
		members, ok := g.Groups[name]
		if !ok {
			return nil, fmt.Errorf("unknown app group %q", name)
		}
		for _, app := range members {
			if _, dup := seen[app]; dup {
				continue
			}
			seen[app] = struct{}{}
			apps = append(apps, app)
		}
	}
	return apps, nil
}
