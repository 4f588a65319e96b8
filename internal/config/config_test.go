package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("unexpected http addr: %q", cfg.HTTPAddr)
	}
	if cfg.Provider != ProviderGemini {
		t.Errorf("unexpected default provider: %q", cfg.Provider)
	}
	if cfg.HistoryLimit != 20 {
		t.Errorf("unexpected history limit: %d", cfg.HistoryLimit)
	}
	if cfg.SessionTTL != 60*time.Minute {
		t.Errorf("unexpected session ttl: %v", cfg.SessionTTL)
	}
	if cfg.Store.Type != "memory" {
		t.Errorf("unexpected store type: %q", cfg.Store.Type)
	}
	if cfg.Yandex.Language != "ru-RU" || cfg.Yandex.AudioFormat != "oggopus" || cfg.Yandex.SampleRate != 48000 {
		t.Errorf("unexpected yandex stt defaults: %+v", cfg.Yandex)
	}
	if cfg.OpenAI.FallbackModel == "" || cfg.Mistral.FallbackModel == "" {
		t.Errorf("fallback models must have defaults: %+v %+v", cfg.OpenAI, cfg.Mistral)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("COURSEASSIST_PROVIDER", "yandex")
	t.Setenv("COURSEASSIST_YANDEX_API_KEY", "secret")
	t.Setenv("COURSEASSIST_YANDEX_FOLDER_ID", "folder-42")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider != ProviderYandex {
		t.Errorf("env override lost: %q", cfg.Provider)
	}
	if cfg.Yandex.APIKey != "secret" || cfg.Yandex.FolderID != "folder-42" {
		t.Errorf("yandex credentials not picked up: %+v", cfg.Yandex)
	}
}

func TestLoad_InvalidProvider(t *testing.T) {
	t.Setenv("COURSEASSIST_PROVIDER", "claude")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		Provider:     ProviderOpenAI,
		HistoryLimit: 20,
		Store:        StoreConfig{Type: "memory"},
	}
	if err := validate(base); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	noPath := base
	noPath.Store = StoreConfig{Type: "sqlite"}
	if err := validate(noPath); err == nil {
		t.Errorf("expected error for sqlite store without path")
	}

	badStore := base
	badStore.Store = StoreConfig{Type: "redis"}
	if err := validate(badStore); err == nil {
		t.Errorf("expected error for unknown store type")
	}

	badLimit := base
	badLimit.HistoryLimit = 0
	if err := validate(badLimit); err == nil {
		t.Errorf("expected error for zero history limit")
	}
}
