package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/jsai2001/GetYourLifeBack/internal/models"
)

func writeGroupsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "groups.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write groups file: %v", err)
	}
	return path
}

func TestLoadAppGroups(t *testing.T) {
	path := writeGroupsFile(t, `
groups:
  social:
    - com.example.social
    - com.example.chat
  markets:
    - com.example.broker
`)
	groups, err := LoadAppGroups(path)
	if err != nil {
		t.Fatalf("LoadAppGroups failed: %v", err)
	}
	if !reflect.DeepEqual(groups.Names(), []string{"markets", "social"}) {
		t.Errorf("unexpected group names %v", groups.Names())
	}
}

func TestLoadAppGroupsMissingFile(t *testing.T) {
	if _, err := LoadAppGroups(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestLoadAppGroupsBadYAML(t *testing.T) {
	path := writeGroupsFile(t, "groups: [not: a: map")
	if _, err := LoadAppGroups(path); err == nil {
		t.Fatal("expected an error for malformed yaml")
	}
}

func TestResolveDeduplicates(t *testing.T) {
	groups := &AppGroups{Groups: map[string][]models.AppID{
		"social": {"com.example.social", "com.example.chat"},
		"doom":   {"com.example.social", "com.example.feed"},
	}}

	apps, err := groups.Resolve([]string{"social", "doom"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	want := []models.AppID{"com.example.social", "com.example.chat", "com.example.feed"}
	if !reflect.DeepEqual(apps, want) {
		t.Errorf("Resolve = %v, want %v", apps, want)
	}
}

func TestResolveUnknownGroup(t *testing.T) {
	groups := &AppGroups{Groups: map[string][]models.AppID{}}
	if _, err := groups.Resolve([]string{"nope"}); err == nil {
		t.Fatal("expected an error for an unknown group")
	}
}
