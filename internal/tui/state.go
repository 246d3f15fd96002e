package tui

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// UIState restores the last screen on relaunch. Best effort on both ends:
// a missing or invalid file yields defaults, and save failures are ignored.
type UIState struct {
	Version int `json:"version"`

	SelectedProjectID string `json:"selectedProjectId,omitempty"`
	SidebarCollapsed  bool   `json:"sidebarCollapsed,omitempty"`

	// Tab is one of: board|calendar
	Tab string `json:"tab,omitempty"`
}

func loadUIState(path string) UIState {
	st := UIState{Version: 1}
	if path == "" {
		return st
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return st
	}
	var loaded UIState
	if err := json.Unmarshal(b, &loaded); err != nil {
		return st
	}
	if loaded.Version == 0 {
		loaded.Version = 1
	}
	return loaded
}

func saveUIState(path string, st UIState) {
	if path == "" {
		return
	}
	st.Version = 1
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return
	}
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	_ = os.WriteFile(path, b, 0o600)
}
