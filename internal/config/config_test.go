package config

import "testing"

func TestLoadTrimsAllowedOrigins(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.mx, https://admin.example.mx ,https://staging.example.mx")

	cfg := Load()

	want := []string{"https://app.example.mx", "https://admin.example.mx", "https://staging.example.mx"}
	if len(cfg.AllowedOrigins) != len(want) {
		t.Fatalf("expected %d origins, got %d", len(want), len(cfg.AllowedOrigins))
	}
	for i, origin := range cfg.AllowedOrigins {
		if origin != want[i] {
			t.Fatalf("origin %d not trimmed: %q", i, origin)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.PropertiesZoomThreshold != 14 {
		t.Fatalf("zoom threshold default, got %d", cfg.PropertiesZoomThreshold)
	}
	if cfg.SyntheticMaxZoom != 9 {
		t.Fatalf("synthetic ceiling default, got %d", cfg.SyntheticMaxZoom)
	}
	if cfg.MaxMapPoints != 10000 {
		t.Fatalf("map point cap default, got %d", cfg.MaxMapPoints)
	}
}
