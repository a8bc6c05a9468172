package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                      = "SHOWCALL"
	defaultHTTPAddress             = "0.0.0.0:8080"
	defaultOSCAddress              = "0.0.0.0:8000"
	defaultOSCActPrefix            = "/bts/"
	defaultBackupDir               = "backups"
	defaultBackupIntervalSeconds   = 60
	defaultBackupRetentionHours    = 24
	defaultBackupPruneIntervalHour = 24
	defaultTagsPath                = "tags.json"
	defaultAnonymousTimeoutMinutes = 15
	defaultLogLevel                = "info"

	backupDatabaseFile = "snapshots.db"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress         string
	AllowedOrigins      []string
	OSCEnabled          bool
	OSCAddress          string
	OSCActPrefix        string
	MTCAddress          string
	BackupDir           string
	BackupInterval      time.Duration
	BackupRetention     time.Duration
	BackupPruneInterval time.Duration
	RestoreOnStart      bool
	TagsPath            string
	AnonymousTimeout    time.Duration
	LogLevel            string
}

// BackupDatabasePath is the snapshot database inside the backup directory.
func (c AppConfig) BackupDatabasePath() string {
	return filepath.Join(c.BackupDir, backupDatabaseFile)
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.allowed_origins", []string{})
	configViper.SetDefault("osc.enabled", true)
	configViper.SetDefault("osc.address", defaultOSCAddress)
	configViper.SetDefault("osc.act_prefix", defaultOSCActPrefix)
	configViper.SetDefault("mtc.address", "")
	configViper.SetDefault("backup.dir", defaultBackupDir)
	configViper.SetDefault("backup.interval_seconds", defaultBackupIntervalSeconds)
	configViper.SetDefault("backup.retention_hours", defaultBackupRetentionHours)
	configViper.SetDefault("backup.prune_interval_hours", defaultBackupPruneIntervalHour)
	configViper.SetDefault("backup.restore_on_start", true)
	configViper.SetDefault("tags.path", defaultTagsPath)
	configViper.SetDefault("sessions.anonymous_timeout_minutes", defaultAnonymousTimeoutMinutes)
	configViper.SetDefault("log.level", defaultLogLevel)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:         configViper.GetString("http.address"),
		AllowedOrigins:      splitOrigins(configViper.GetStringSlice("http.allowed_origins")),
		OSCEnabled:          configViper.GetBool("osc.enabled"),
		OSCAddress:          configViper.GetString("osc.address"),
		OSCActPrefix:        configViper.GetString("osc.act_prefix"),
		MTCAddress:          strings.TrimSpace(configViper.GetString("mtc.address")),
		BackupDir:           configViper.GetString("backup.dir"),
		BackupInterval:      time.Duration(configViper.GetInt("backup.interval_seconds")) * time.Second,
		BackupRetention:     time.Duration(configViper.GetInt("backup.retention_hours")) * time.Hour,
		BackupPruneInterval: time.Duration(configViper.GetInt("backup.prune_interval_hours")) * time.Hour,
		RestoreOnStart:      configViper.GetBool("backup.restore_on_start"),
		TagsPath:            configViper.GetString("tags.path"),
		AnonymousTimeout:    time.Duration(configViper.GetInt("sessions.anonymous_timeout_minutes")) * time.Minute,
		LogLevel:            configViper.GetString("log.level"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	if c.OSCEnabled && strings.TrimSpace(c.OSCAddress) == "" {
		return fmt.Errorf("osc.address is required when osc.enabled is set")
	}
	if c.OSCEnabled && !strings.HasPrefix(c.OSCActPrefix, "/") {
		return fmt.Errorf("osc.act_prefix must start with /")
	}
	if strings.TrimSpace(c.BackupDir) == "" {
		return fmt.Errorf("backup.dir is required")
	}
	if c.BackupInterval <= 0 {
		return fmt.Errorf("backup.interval_seconds must be positive")
	}
	if c.BackupRetention <= 0 {
		return fmt.Errorf("backup.retention_hours must be positive")
	}
	if c.BackupPruneInterval <= 0 {
		return fmt.Errorf("backup.prune_interval_hours must be positive")
	}
	if strings.TrimSpace(c.TagsPath) == "" {
		return fmt.Errorf("tags.path is required")
	}
	if c.AnonymousTimeout <= 0 {
		return fmt.Errorf("sessions.anonymous_timeout_minutes must be positive")
	}
	return nil
}

// splitOrigins accepts both list values and a single comma separated env value.
func splitOrigins(raw []string) []string {
	origins := make([]string, 0, len(raw))
	for _, entry := range raw {
		for _, origin := range strings.Split(entry, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}
	return origins
}
