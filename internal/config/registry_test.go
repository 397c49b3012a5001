package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestGetConfigDir(t *testing.T) {
	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	if configDir == "" {
		t.Error("GetConfigDir() returned empty string")
	}

	if !strings.Contains(configDir, "mowerctl") {
		t.Errorf("GetConfigDir() = %v, should contain 'mowerctl'", configDir)
	}

	switch runtime.GOOS {
	case "windows":
		if !strings.Contains(configDir, "AppData") && !strings.Contains(configDir, "Local") {
			t.Errorf("Windows config dir should contain 'AppData' or 'Local', got: %v", configDir)
		}
	case "darwin":
		if !strings.Contains(configDir, ".config") {
			t.Errorf("macOS config dir should contain '.config', got: %v", configDir)
		}
	}
}

func TestGetConfigDir_XDG(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		t.Skip("XDG_CONFIG_HOME is only honoured on Linux and other Unix systems")
	}
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if configDir != filepath.Join(xdg, "mowerctl") {
		t.Errorf("GetConfigDir() = %v, want %v", configDir, filepath.Join(xdg, "mowerctl"))
	}
}

func TestGetRegistryPath(t *testing.T) {
	registryPath, err := GetRegistryPath()
	if err != nil {
		t.Fatalf("GetRegistryPath() error = %v", err)
	}

	if filepath.Base(registryPath) != "registry.yaml" {
		t.Errorf("GetRegistryPath() should end with 'registry.yaml', got: %v", registryPath)
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	if reg.Version != 1 {
		t.Errorf("NewRegistry().Version = %v, want 1", reg.Version)
	}

	if reg.Mowers == nil {
		t.Error("NewRegistry().Mowers should not be nil")
	}

	if reg.Preferences == nil {
		t.Fatal("NewRegistry().Preferences should not be nil")
	}

	if reg.Preferences.DefaultStartMinutes != 60 {
		t.Errorf("DefaultStartMinutes = %v, want 60", reg.Preferences.DefaultStartMinutes)
	}
}

func TestRegistryEnsureMower(t *testing.T) {
	reg := NewRegistry()

	entry1 := reg.EnsureMower("id-1")
	if entry1 == nil {
		t.Fatal("EnsureMower() returned nil")
	}

	entry2 := reg.EnsureMower("id-1")
	if entry1 != entry2 {
		t.Error("EnsureMower() should return same instance for same id")
	}

	entry3 := reg.EnsureMower("id-2")
	if entry1 == entry3 {
		t.Error("EnsureMower() should create new instance for different id")
	}
}

func TestRegistryUpdateMowerSeen(t *testing.T) {
	reg := NewRegistry()

	before := time.Now()
	reg.UpdateMowerSeen("id-1", "Front", "450X")
	after := time.Now()

	entry := reg.GetMower("id-1")
	if entry == nil {
		t.Fatal("Mower should exist after UpdateMowerSeen()")
	}

	if entry.Name != "Front" || entry.Model != "450X" {
		t.Errorf("entry = %+v", entry)
	}

	if entry.LastSeen.Before(before) || entry.LastSeen.After(after) {
		t.Errorf("LastSeen = %v, should be between %v and %v", entry.LastSeen, before, after)
	}

	// An empty model keeps the known one
	reg.UpdateMowerSeen("id-1", "Front lawn", "")
	if entry.Name != "Front lawn" || entry.Model != "450X" {
		t.Errorf("entry after rename = %+v", entry)
	}
}

func TestRegistryRecordStatus(t *testing.T) {
	reg := NewRegistry()
	battery := 42

	reg.RecordStatus("id-1", "OK", "MOWING", &battery)
	battery = 0

	entry := reg.GetMower("id-1")
	if entry.LastState != "OK" || entry.LastActivity != "MOWING" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.LastBattery == nil || *entry.LastBattery != 42 {
		t.Errorf("LastBattery should be copied, got %v", entry.LastBattery)
	}

	// Partial updates keep earlier values
	reg.RecordStatus("id-1", "", "PARKED_IN_CS", nil)
	if entry.LastState != "OK" || entry.LastActivity != "PARKED_IN_CS" || *entry.LastBattery != 42 {
		t.Errorf("entry after partial update = %+v", entry)
	}
}

func TestRegistryResolveName(t *testing.T) {
	reg := NewRegistry()
	reg.UpdateMowerSeen("id-1", "Front lawn", "")
	reg.SetMowerNickname("id-1", "front")
	reg.UpdateMowerSeen("id-2", "Back", "")

	tests := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{"Front lawn", "Front lawn", true},
		{"front", "Front lawn", true},
		{"Back", "Back", true},
		{"Side", "Side", false},
	}

	for _, tt := range tests {
		got, ok := reg.ResolveName(tt.input)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ResolveName(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.wantOK)
		}
	}

	if got := reg.NameForID("id-1"); got != "front" {
		t.Errorf("NameForID(id-1) = %q, want nickname", got)
	}
	if got := reg.NameForID("id-2"); got != "Back" {
		t.Errorf("NameForID(id-2) = %q, want Back", got)
	}
	if got := reg.NameForID("id-9"); got != "id-9" {
		t.Errorf("NameForID(id-9) = %q, want id-9", got)
	}
}

func TestRegistryStartMinutes(t *testing.T) {
	reg := NewRegistry()
	if reg.StartMinutes() != 60 {
		t.Errorf("StartMinutes() = %d, want 60", reg.StartMinutes())
	}

	reg.Preferences.DefaultStartMinutes = 120
	if reg.StartMinutes() != 120 {
		t.Errorf("StartMinutes() = %d, want 120", reg.StartMinutes())
	}

	reg.Preferences = nil
	if reg.StartMinutes() != 60 {
		t.Errorf("StartMinutes() without preferences = %d, want 60", reg.StartMinutes())
	}
}

func TestRegistrySaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "registry.yaml")

	battery := 90
	reg := NewRegistry()
	reg.UpdateMowerSeen("id-1", "Front", "450X")
	reg.SetMowerNickname("id-1", "front")
	reg.RecordStatus("id-1", "OK", "MOWING", &battery)
	reg.Preferences.DefaultMower = "front"

	if err := reg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("registry file missing: %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
		t.Errorf("registry permissions = %v, want 0600", info.Mode().Perm())
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file should be renamed away")
	}

	data, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(data), "# mowerctl mower registry") {
		t.Error("registry file should start with the header comment")
	}
	if strings.Contains(strings.ToLower(string(data)), "secret:") {
		t.Error("registry must not contain secrets")
	}

	loaded, err := LoadRegistryFile(path)
	if err != nil {
		t.Fatalf("LoadRegistryFile() error = %v", err)
	}

	entry := loaded.GetMower("id-1")
	if entry == nil {
		t.Fatal("Mower should exist in loaded registry")
	}
	if entry.Name != "Front" || entry.Nickname != "front" || entry.LastState != "OK" {
		t.Errorf("loaded entry = %+v", entry)
	}
	if entry.LastBattery == nil || *entry.LastBattery != 90 {
		t.Errorf("loaded battery = %v", entry.LastBattery)
	}
	if loaded.Preferences.DefaultMower != "front" {
		t.Errorf("DefaultMower = %q", loaded.Preferences.DefaultMower)
	}
}

func TestLoadRegistryFile_Missing(t *testing.T) {
	reg, err := LoadRegistryFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadRegistryFile() error = %v", err)
	}
	if reg.Version != 1 || len(reg.Mowers) != 0 {
		t.Errorf("missing file should give a default registry, got %+v", reg)
	}
}

func TestLoadRegistryFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad yaml", "version: [1", "failed to parse"},
		{"wrong version", "version: 2\n", "unsupported registry version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "registry.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}

			_, err := LoadRegistryFile(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadRegistryFile() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadRegistryFile_FillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	if err := os.WriteFile(path, []byte("version: 1\n"), 0600); err != nil {
		t.Fatal(err)
	}

	reg, err := LoadRegistryFile(path)
	if err != nil {
		t.Fatalf("LoadRegistryFile() error = %v", err)
	}
	if reg.Mowers == nil || reg.Preferences == nil {
		t.Errorf("maps and preferences should be initialized, got %+v", reg)
	}
}

func BenchmarkEnsureMower(b *testing.B) {
	reg := NewRegistry()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		reg.EnsureMower("id-1")
	}
}
