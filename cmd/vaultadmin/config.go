package main

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// CLIConfig is the persistent CLI configuration.
type CLIConfig struct {
	DBUrl         string `yaml:"db_url"`
	AdminDBUrl    string `yaml:"admin_db_url"`
	ListenAddr    string `yaml:"listen_addr"`
	MigrationsDir string `yaml:"migrations_dir"`
	LogLevel      string `yaml:"log_level"`
}

var cfg CLIConfig

// configPath returns the path to the CLI config file.
func configPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".vaultadmin", "config.yaml")
}

// loadConfig loads the CLI config from disk and applies env overrides.
// Only this layer reads ambient process state; core packages receive
// explicit Config structs.
func loadConfig() {
	cfg = CLIConfig{
		ListenAddr:    ":8300",
		MigrationsDir: "migrations",
		LogLevel:      "info",
	}
	if data, err := os.ReadFile(configPath()); err == nil {
		yaml.Unmarshal(data, &cfg) //nolint:errcheck
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DBUrl = v
	}
	if v := os.Getenv("VAULTADMIN_ADMIN_DB_URL"); v != "" {
		cfg.AdminDBUrl = v
	}
}

// databaseName extracts the database name from a connection URL.
func databaseName(dbURL string) string {
	u, err := url.Parse(dbURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}

// maintenanceURL rewrites a connection URL to point at the postgres
// maintenance database, used when the target database must be dropped.
func maintenanceURL(dbURL string) string {
	u, err := url.Parse(dbURL)
	if err != nil {
		return ""
	}
	u.Path = "/postgres"
	return u.String()
}
