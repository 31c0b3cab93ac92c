package settings

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/fpang/minipaint/internal/chat"
)

type memStore struct {
	docs map[string][]byte
}

func (s *memStore) Get(ctx context.Context, key string, out any) (bool, error) {
	data, ok := s.docs[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, out)
}

func (s *memStore) Put(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.docs[key] = data
	return nil
}

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, k := range []string{EnvAPIKey, EnvModel, EnvProvider, EnvLocalEndpoint, EnvDatabase} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Provider != chat.BackendGemini || cfg.LocalEndpoint != chat.DefaultLocalEndpoint {
		t.Errorf("defaults = %+v", cfg)
	}
	if filepath.Base(cfg.Database) != "minipaint.db" {
		t.Errorf("database = %q", cfg.Database)
	}
	if !reflect.DeepEqual(cfg.Models, []string{chat.DefaultModelName}) {
		t.Errorf("models = %v", cfg.Models)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
provider: local
localEndpoint: http://gpu-box:1234/v1
localModel: qwen2.5-vl-7b
models: [gemini-2.5-pro, gemini-2.5-flash]
database: /data/mini.db
colorThreshold: 0.2
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Provider != "local" || cfg.LocalModel != "qwen2.5-vl-7b" || cfg.ColorThreshold != 0.2 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if len(cfg.Models) != 2 || cfg.Database != "/data/mini.db" {
		t.Errorf("file values not applied: %+v", cfg)
	}

	t.Setenv(EnvProvider, "GEMINI")
	t.Setenv(EnvDatabase, "/tmp/other.db")
	t.Setenv(EnvModel, "gemini-2.5-flash-lite")
	cfg, err = Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider != "gemini" || cfg.Database != "/tmp/other.db" || !reflect.DeepEqual(cfg.Models, []string{"gemini-2.5-flash-lite"}) {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name string
		path string
	}{
		{"missing explicit file", filepath.Join(t.TempDir(), "nope.yaml")},
		{"bad yaml", writeConfig(t, "provider: [unclosed")},
		{"unknown provider", writeConfig(t, "provider: openai")},
		{"bad threshold", writeConfig(t, "colorThreshold: 3")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(tt.path); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestServiceLoadsSavedSettings(t *testing.T) {
	clearEnv(t)
	ctx := context.Background()
	cfg, _ := Load("")
	store := &memStore{docs: map[string][]byte{
		StoreKey: []byte(`{"provider":"local","localEndpoint":"http://127.0.0.1:8080/v1"}`),
	}}

	svc, err := NewService(ctx, cfg, store)
	if err != nil {
		t.Fatal(err)
	}
	if got := svc.Get(); got != (Settings{Provider: "local", LocalEndpoint: "http://127.0.0.1:8080/v1"}) {
		t.Errorf("Get() = %+v, want saved settings", got)
	}
}

func TestServiceIgnoresInvalidSaved(t *testing.T) {
	clearEnv(t)
	cfg, _ := Load("")
	store := &memStore{docs: map[string][]byte{StoreKey: []byte(`{"provider":"local","localEndpoint":""}`)}}

	svc, err := NewService(context.Background(), cfg, store)
	if err != nil {
		t.Fatal(err)
	}
	if got := svc.Get(); got != (Settings{Provider: chat.BackendGemini, LocalEndpoint: chat.DefaultLocalEndpoint}) {
		t.Errorf("Get() = %+v, want defaults", got)
	}
}

func TestServicePinnedByEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvProvider, "gemini")
	cfg, _ := Load("")
	store := &memStore{docs: map[string][]byte{
		StoreKey: []byte(`{"provider":"local","localEndpoint":"http://127.0.0.1:8080/v1"}`),
	}}

	svc, _ := NewService(context.Background(), cfg, store)
	got := svc.Get()
	if got.Provider != chat.BackendGemini || got.LocalEndpoint != "http://127.0.0.1:8080/v1" {
		t.Errorf("Get() = %+v, want pinned provider with saved endpoint", got)
	}
}

func TestServiceUpdate(t *testing.T) {
	clearEnv(t)
	ctx := context.Background()
	cfg, _ := Load("")
	store := &memStore{docs: map[string][]byte{}}
	svc, _ := NewService(ctx, cfg, store)

	if _, err := svc.Update(ctx, Settings{Provider: "openai", LocalEndpoint: "x"}); !errors.Is(err, ErrInvalid) {
		t.Errorf("unknown provider = %v, want ErrInvalid", err)
	}
	if _, err := svc.Update(ctx, Settings{Provider: "local", LocalEndpoint: "  "}); !errors.Is(err, ErrInvalid) {
		t.Errorf("blank endpoint = %v, want ErrInvalid", err)
	}

	got, err := svc.Update(ctx, Settings{Provider: " Local ", LocalEndpoint: "http://localhost:1234/v1 "})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	want := Settings{Provider: "local", LocalEndpoint: "http://localhost:1234/v1"}
	if got != want || svc.Get() != want {
		t.Errorf("Update() = %+v, Get() = %+v", got, svc.Get())
	}

	reloaded, _ := NewService(ctx, cfg, store)
	if reloaded.Get() != want {
		t.Errorf("saved settings not persisted: %+v", reloaded.Get())
	}
}

func TestOverridePins(t *testing.T) {
	clearEnv(t)
	cfg, _ := Load("")
	cfg.Override("local", "http://box:1234/v1", "/tmp/x.db")
	store := &memStore{docs: map[string][]byte{}}
	svc, _ := NewService(context.Background(), cfg, store)

	got, err := svc.Update(context.Background(), Settings{Provider: "gemini", LocalEndpoint: "http://other/v1"})
	if err != nil {
		t.Fatal(err)
	}
	if got != (Settings{Provider: "local", LocalEndpoint: "http://box:1234/v1"}) || cfg.Database != "/tmp/x.db" {
		t.Errorf("flags should pin settings, got %+v", got)
	}
}
