package tui

import (
	"os"
	"path/filepath"
	"testing"
)

func TestUIStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	saveUIState(path, UIState{
		SelectedProjectID: "p1",
		SidebarCollapsed:  true,
		Tab:               "calendar",
	})

	got := loadUIState(path)
	if got.SelectedProjectID != "p1" || !got.SidebarCollapsed || got.Tab != "calendar" {
		t.Fatalf("round trip lost fields: %+v", got)
	}
	if got.Version != 1 {
		t.Fatalf("version = %d, want 1", got.Version)
	}
}

func TestUIStateMissingOrInvalidFileYieldsDefaults(t *testing.T) {
	if st := loadUIState(filepath.Join(t.TempDir(), "absent.json")); st != (UIState{Version: 1}) {
		t.Fatalf("missing file: %+v", st)
	}
	if st := loadUIState(""); st != (UIState{Version: 1}) {
		t.Fatalf("empty path: %+v", st)
	}

	bad := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if st := loadUIState(bad); st != (UIState{Version: 1}) {
		t.Fatalf("invalid file: %+v", st)
	}
}
