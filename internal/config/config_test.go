package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddress != defaultHTTPAddress || !cfg.OSCEnabled || cfg.OSCActPrefix != "/bts/" {
		t.Fatalf("unexpected defaults %#v", cfg)
	}
	if cfg.BackupInterval != time.Minute || cfg.BackupRetention != 24*time.Hour || cfg.BackupPruneInterval != 24*time.Hour {
		t.Fatalf("unexpected backup cadence %#v", cfg)
	}
	if cfg.AnonymousTimeout != 15*time.Minute {
		t.Fatalf("expected 15 minute anonymity timeout, got %v", cfg.AnonymousTimeout)
	}
	if cfg.MTCAddress != "" {
		t.Fatalf("expected mtc listener disabled by default")
	}
	if cfg.BackupDatabasePath() != "backups/snapshots.db" {
		t.Fatalf("unexpected backup database path %q", cfg.BackupDatabasePath())
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("SHOWCALL_OSC_ACT_PREFIX", "/show/act/")
	t.Setenv("SHOWCALL_SESSIONS_ANONYMOUS_TIMEOUT_MINUTES", "5")
	t.Setenv("SHOWCALL_HTTP_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OSCActPrefix != "/show/act/" {
		t.Fatalf("expected env act prefix, got %q", cfg.OSCActPrefix)
	}
	if cfg.AnonymousTimeout != 5*time.Minute {
		t.Fatalf("expected env timeout, got %v", cfg.AnonymousTimeout)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example.com" {
		t.Fatalf("unexpected origins %#v", cfg.AllowedOrigins)
	}
}

func TestLoadValidates(t *testing.T) {
	testCases := []struct {
		name  string
		key   string
		value any
	}{
		{name: "empty backup dir", key: "backup.dir", value: ""},
		{name: "zero interval", key: "backup.interval_seconds", value: 0},
		{name: "relative act prefix", key: "osc.act_prefix", value: "bts"},
		{name: "empty tags path", key: "tags.path", value: " "},
		{name: "zero timeout", key: "sessions.anonymous_timeout_minutes", value: 0},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			configViper := NewViper()
			configViper.Set(testCase.key, testCase.value)
			if _, err := Load(configViper); err == nil {
				t.Fatalf("expected validation error for %s", testCase.key)
			}
		})
	}
}
