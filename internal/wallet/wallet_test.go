package wallet

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMockIsDeterministic(t *testing.T) {
	a, err := Load(true, "", "default", "default")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	b, err := Load(true, "", "default", "default")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if a.Hotkey != b.Hotkey {
		t.Errorf("mock identities for the same name/hotkey differ: %q vs %q", a.Hotkey, b.Hotkey)
	}

	other, err := Load(true, "", "default", "other")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if other.Hotkey == a.Hotkey {
		t.Error("mock identities for different hotkeys must not collide")
	}
}

func TestLoadFromHotkeyFile(t *testing.T) {
	dir := t.TempDir()
	hotkeysDir := filepath.Join(dir, "mywallet", "hotkeys")
	if err := os.MkdirAll(hotkeysDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}
	raw, err := json.Marshal(hotkeyFile{SecretSeed: hex.EncodeToString(seed)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(filepath.Join(hotkeysDir, "default"), raw, 0o600); err != nil {
		t.Fatalf("write hotkey file: %v", err)
	}

	id, err := Load(false, dir, "mywallet", "default")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if id.Hotkey == "" {
		t.Error("expected a non-empty hotkey")
	}
}

func TestLoadMissingHotkeyFileFails(t *testing.T) {
	if _, err := Load(false, t.TempDir(), "nope", "nope"); err == nil {
		t.Fatal("expected an error for a missing hotkey file")
	}
}
