package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	lienos "github.com/3piecechickendinner/LeinOS"
	"github.com/3piecechickendinner/LeinOS/store/sqlite"
	"github.com/3piecechickendinner/LeinOS/tenant"
)

// Config holds the CLI configuration. Flags win over LIENOS_* environment
// variables, which win over defaults.
type Config struct {
	DBPath string
	Tenant string
}

func loadConfig(cmd *cobra.Command) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LIENOS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("DB_PATH", "lienos.db")

	cfg := &Config{
		DBPath: v.GetString("DB_PATH"),
		Tenant: v.GetString("TENANT"),
	}

	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.DBPath = db
	}
	if t, _ := cmd.Flags().GetString("tenant"); t != "" {
		cfg.Tenant = t
	}

	if cfg.Tenant == "" {
		return nil, fmt.Errorf("tenant is required (--tenant or LIENOS_TENANT)")
	}
	return cfg, nil
}

// openEngine builds a started Engine over the configured SQLite store.
// The returned cleanup stops the engine and closes the store.
func openEngine(ctx context.Context, cmd *cobra.Command) (*lienos.Engine, tenant.ID, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, tenant.ID{}, nil, err
	}

	tenantID, err := tenant.Parse(cfg.Tenant)
	if err != nil {
		return nil, tenant.ID{}, nil, fmt.Errorf("invalid tenant %q: %w", cfg.Tenant, err)
	}

	st, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, tenant.ID{}, nil, fmt.Errorf("open store %s: %w", cfg.DBPath, err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	engine := lienos.New(st, lienos.WithLogger(logger))
	if err := engine.Start(ctx); err != nil {
		_ = st.Close() //nolint:errcheck // already failing
		return nil, tenant.ID{}, nil, err
	}

	cleanup := func() {
		if err := engine.Stop(); err != nil {
			fmt.Fprintln(os.Stderr, "shutdown:", err)
		}
	}
	return engine, tenantID, cleanup, nil
}
