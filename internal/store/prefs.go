package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Preferences is the small persisted UI state tier. It is the only thing
// this subsystem writes to disk besides the audit journal; session state is
// volatile and rebuilt from the event stream, and the two tiers are never
// serialized together.
type Preferences struct {
	PanelOpen     bool     `json:"panelOpen"`
	ActiveSection string   `json:"activeSection,omitempty"`
	PanelWidth    int      `json:"panelWidth,omitempty"`
	ActiveFilters []string `json:"activeFilters,omitempty"`
}

// DefaultPreferences returns the first-run preference values.
func DefaultPreferences() Preferences {
	return Preferences{
		PanelOpen:     true,
		ActiveSection: "activity",
		PanelWidth:    360,
	}
}

// LoadPreferences reads preferences from path. A missing file returns
// defaults without error.
func LoadPreferences(path string) (Preferences, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultPreferences(), nil
	}
	if err != nil {
		return DefaultPreferences(), fmt.Errorf("read preferences: %w", err)
	}
	prefs := DefaultPreferences()
	if err := json.Unmarshal(data, &prefs); err != nil {
		return DefaultPreferences(), fmt.Errorf("parse preferences: %w", err)
	}
	return prefs, nil
}

// SavePreferences writes preferences to path, creating parent directories.
func SavePreferences(path string, prefs Preferences) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create preferences dir: %w", err)
	}
	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	return nil
}
