package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/org/vaultadmin/internal/api"
	"github.com/org/vaultadmin/internal/restore"
	"github.com/org/vaultadmin/internal/rotate"
	"github.com/org/vaultadmin/internal/snapshot"
	"github.com/org/vaultadmin/internal/storage"
	"github.com/org/vaultadmin/internal/verify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "vaultadmin",
	Short:        "Admin tooling for the credential database",
	Long:         "Snapshots, restores, verifies and rotates the at-rest encryption key of the credential database.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loadConfig()
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		level, err := zerolog.ParseLevel(cfg.LogLevel)
		if err != nil {
			level = zerolog.InfoLevel
		}
		zerolog.SetGlobalLevel(level)
		if v, _ := cmd.Flags().GetString("db-url"); v != "" {
			cfg.DBUrl = v
		}
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("db-url", "", "Database connection URL (overrides config and DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table", "Output format: table, json")

	rootCmd.AddCommand(snapshotCmd())
	rootCmd.AddCommand(restoreCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(rotateKeyCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(serveCmd())
}

func requireDBUrl() error {
	if cfg.DBUrl == "" {
		return errors.New("no database configured: set db_url in config, DATABASE_URL, or --db-url")
	}
	return nil
}

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Write a logical snapshot of the credential database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDBUrl(); err != nil {
				return err
			}
			out, _ := cmd.Flags().GetString("out")
			result, err := snapshot.Run(cmd.Context(), snapshot.Config{
				DBUrl:       cfg.DBUrl,
				Destination: out,
				Progress: func(table string, pos, total int) {
					fmt.Fprintf(os.Stderr, "[%d/%d] %s\n", pos, total, table)
				},
			})
			if err != nil {
				return err
			}
			printResult(map[string]any{
				"path":  result.Path,
				"bytes": result.ByteSize,
				"lines": result.LineCount,
			})
			return nil
		},
	}
	cmd.Flags().String("out", "snapshot.sql", "Destination path for the snapshot artifact")
	return cmd
}

func restoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <artifact>",
		Short: "Replay a snapshot artifact against the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDBUrl(); err != nil {
				return err
			}
			drop, _ := cmd.Flags().GetBool("drop")

			adminURL := cfg.AdminDBUrl
			if adminURL == "" {
				adminURL = maintenanceURL(cfg.DBUrl)
			}
			result, err := restore.Run(cmd.Context(), restore.Config{
				DBUrl:        cfg.DBUrl,
				AdminDBUrl:   adminURL,
				DatabaseName: databaseName(cfg.DBUrl),
				ArtifactPath: args[0],
				DropFirst:    drop,
			})
			if err != nil {
				return err
			}
			printResult(map[string]any{
				"succeeded": result.Succeeded,
				"failed":    result.Failed,
			})
			if result.Failed > 0 {
				return fmt.Errorf("%d statements failed", result.Failed)
			}
			return nil
		},
	}
	cmd.Flags().Bool("drop", false, "Drop and recreate the target database before replaying")
	return cmd
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that all core tables are present",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDBUrl(); err != nil {
				return err
			}
			result, err := verify.Run(cmd.Context(), cfg.DBUrl)
			if err != nil {
				return err
			}
			printResult(map[string]any{
				"valid":   result.Valid,
				"missing": result.Missing,
			})
			if !result.Valid {
				return fmt.Errorf("missing core tables: %v", result.Missing)
			}
			return nil
		},
	}
}

func rotateKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rotate-key",
		Short: "Re-encrypt all stored secrets under a new key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDBUrl(); err != nil {
				return err
			}
			oldKey, _ := cmd.Flags().GetString("old-key")
			newKey, _ := cmd.Flags().GetString("new-key")
			if oldKey == "" {
				oldKey = os.Getenv("VAULTADMIN_OLD_KEY")
			}
			if newKey == "" {
				newKey = os.Getenv("VAULTADMIN_NEW_KEY")
			}

			result, err := rotate.Run(cmd.Context(), rotate.Config{
				DBUrl:  cfg.DBUrl,
				OldKey: oldKey,
				NewKey: newKey,
				Progress: func(alias string, pos, total int) {
					fmt.Fprintf(os.Stderr, "[%d/%d] %s\n", pos, total, alias)
				},
			})
			if err != nil {
				return err
			}
			printResult(map[string]any{
				"rotated": result.Rotated,
				"failed":  result.Failed,
			})
			for _, f := range result.Failures {
				fmt.Fprintf(os.Stderr, "failed: %s: %s\n", f.Alias, f.Reason)
			}
			if result.Failed > 0 {
				return fmt.Errorf("%d records still encrypted under the old key; do not switch the active key", result.Failed)
			}
			return nil
		},
	}
	cmd.Flags().String("old-key", "", "Current key (64 hex chars; or VAULTADMIN_OLD_KEY)")
	cmd.Flags().String("new-key", "", "Replacement key (64 hex chars; or VAULTADMIN_NEW_KEY)")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDBUrl(); err != nil {
				return err
			}
			dir, _ := cmd.Flags().GetString("dir")
			if err := storage.RunMigrations(cfg.DBUrl, dir); err != nil {
				return err
			}
			log.Info().Str("dir", dir).Msg("migrations applied")
			return nil
		},
	}
	cmd.Flags().String("dir", "migrations", "Directory containing migration files")
	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only admin HTTP endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDBUrl(); err != nil {
				return err
			}
			listen, _ := cmd.Flags().GetString("listen")

			ctx := context.Background()
			store, err := storage.NewPostgresStore(ctx, cfg.DBUrl)
			if err != nil {
				return err
			}
			defer store.Close()

			srv := api.NewServer(store, api.Config{ListenAddr: listen})

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				if err := srv.Start(); err != nil {
					log.Fatal().Err(err).Msg("server failed")
				}
			}()
			<-quit

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().String("listen", ":8300", "Listen address")
	return cmd
}
