// Package cli implements importctl, which previews and commits inventory
// files from the command line against the configured store.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/shplep/homecontentslistpro-sub000/internal/config"
	"github.com/shplep/homecontentslistpro-sub000/internal/core"
	"github.com/shplep/homecontentslistpro-sub000/internal/core/importer"
	"github.com/shplep/homecontentslistpro-sub000/internal/logging"
	"github.com/shplep/homecontentslistpro-sub000/internal/session"
	"github.com/shplep/homecontentslistpro-sub000/internal/store"
)

// cliCommitTimeout keeps CommitImport waiting for the whole run; a CLI
// has nothing to hand the commit off to.
const cliCommitTimeout = 24 * time.Hour

// NewRootCmd builds the importctl command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "importctl",
		Short: "Preview and commit home inventory imports",
		Long: `importctl reads a CSV or JSON inventory file, shows what would be
imported, and commits it to the configured store.

Configuration comes from the environment (and a .env file) exactly as for
the server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			_ = godotenv.Load()
		},
	}
	root.PersistentFlags().String("driver", "", "Store driver: postgres, sqlite or memory (overrides STORE_DRIVER)")

	root.AddCommand(newPreviewCmd(), newCommitCmd(), newMigrateCmd())
	return root
}

// Execute runs importctl.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig applies the --driver override before loading so validation
// sees the driver actually used.
func loadConfig(cmd *cobra.Command, driver string) (*config.Config, error) {
	if driver == "" {
		driver, _ = cmd.Flags().GetString("driver")
	}
	if driver != "" {
		if err := os.Setenv("STORE_DRIVER", driver); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

// newService wires a single-process service over st. Previews live in
// memory for the duration of the command.
func newService(cfg *config.Config, st importer.Store) (*core.Service, error) {
	normalizer, err := store.NewNormalizer(cfg)
	if err != nil {
		return nil, fmt.Errorf("column aliases: %w", err)
	}
	return core.NewService(core.Deps{
		Store:      st,
		Normalizer: normalizer,
		Sessions:   session.NewMemoryStore(),
		Limiter:    core.NewCommitLimiter(1, time.Second),
		Logger:     slog.Default(),
	}, core.Config{
		PreviewTTL:    time.Hour,
		CommitTimeout: cliCommitTimeout,
		MaxRows:       cfg.Import.MaxRows,
		MaxFileSize:   cfg.Import.MaxFileSize,
	})
}

// previewFile opens path and stores its preview.
func previewFile(ctx context.Context, svc *core.Service, owner, path string) (*session.Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return svc.PreviewFile(ctx, owner, path, "", f, info.Size())
}
