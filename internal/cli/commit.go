package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shplep/homecontentslistpro-sub000/internal/core"
	"github.com/shplep/homecontentslistpro-sub000/internal/core/importer"
	"github.com/shplep/homecontentslistpro-sub000/internal/store"
)

func newCommitCmd() *cobra.Command {
	var (
		owner       string
		opts        importer.Options
		dryRun      bool
		diagnostics bool
	)
	cmd := &cobra.Command{
		Use:   "commit FILE",
		Short: "Import FILE into the configured store",
		Long: `Previews FILE and, when no row has errors, commits it. With --dry-run
the commit runs against an empty in-memory store so the counts can be
checked without writing anything.

Examples:
  importctl commit items.csv --owner 42 --create-houses --create-rooms
  importctl commit items.csv --owner 42 --update-existing --dry-run
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			driver := ""
			if dryRun {
				driver = "memory"
			}
			cfg, err := loadConfig(cmd, driver)
			if err != nil {
				return err
			}

			db, err := store.Open(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			svc, err := newService(cfg, db.Store)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			sess, err := previewFile(cmd.Context(), svc, owner, args[0])
			if err != nil {
				return err
			}
			if sess.Preview.HasErrors() {
				printPreview(out, sess.Preview)
			}

			opts.CollectDiagnostics = diagnostics
			result, err := svc.CommitImport(cmd.Context(), owner, sess.ID, opts)
			if errors.Is(err, core.ErrPreviewHasErrors) {
				return fmt.Errorf("%s has %d row errors; nothing was imported", args[0], len(sess.Preview.Errors))
			}
			if err != nil {
				return err
			}

			if dryRun {
				fmt.Fprint(out, "[dry run] ")
			}
			fmt.Fprintln(out, result.Summary)
			for _, d := range result.Diagnostics {
				fmt.Fprintf(out, "  row %d: %s\n", d.Row, d.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Owner id the import is for (required)")
	cmd.Flags().BoolVar(&opts.UpdateExisting, "update-existing", false, "Update items that already exist")
	cmd.Flags().BoolVar(&opts.SkipDuplicates, "skip-duplicates", false, "Skip items that already exist")
	cmd.Flags().BoolVar(&opts.CreateMissingHouses, "create-houses", false, "Create houses that do not exist")
	cmd.Flags().BoolVar(&opts.CreateMissingRooms, "create-rooms", false, "Create rooms that do not exist")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Commit into a throwaway in-memory store")
	cmd.Flags().BoolVar(&diagnostics, "diagnostics", false, "List rows that were not written")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}
