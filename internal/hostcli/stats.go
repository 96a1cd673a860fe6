package hostcli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/skobkin/macsniff/internal/persistence"
)

func newStatsCmd(e *env) *cobra.Command {
	var top, recent int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show archive statistics",
		Long: `Show what the archive holds: imported batches, scan files, sightings and
distinct addresses, followed by the most frequently seen addresses and the
latest imports.`,
		Example: `  macsniff-host stats
  macsniff-host stats --top 25 --recent 0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := e.openArchive(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			stats := persistence.NewStatsRepo(db)
			sum, err := stats.Summary(ctx)
			if err != nil {
				return err
			}

			w := out(cmd)
			fmt.Fprintf(w, "Archive:      %s\n", e.archivePath())
			fmt.Fprintf(w, "Imports:      %d\n", sum.Imports)
			fmt.Fprintf(w, "Scan files:   %d (%s)\n", sum.Files, humanize.IBytes(uint64(sum.TotalBytes))) // #nosec G115
			fmt.Fprintf(w, "Sightings:    %d\n", sum.Sightings)
			fmt.Fprintf(w, "Unique MACs:  %d\n", sum.UniqueMACs)
			if !sum.FirstSeen.IsZero() {
				fmt.Fprintf(w, "First import: %s\n", sum.FirstSeen.Local().Format(time.DateTime))
				fmt.Fprintf(w, "Last import:  %s (%s)\n", sum.LastSeen.Local().Format(time.DateTime), humanize.RelTime(sum.LastSeen, e.opts.Now(), "ago", "from now"))
			}

			if top > 0 && sum.Sightings > 0 {
				macs, err := stats.TopMACs(ctx, top)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "\nTop %d addresses:\n", len(macs))
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "MAC\tFILES")
				for _, m := range macs {
					fmt.Fprintf(tw, "%s\t%d\n", m.MAC, m.Files)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}

			if recent > 0 && sum.Imports > 0 {
				imports, err := persistence.NewImportRepo(db).ListImports(ctx, recent)
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "\nRecent imports:")
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "WHEN\tSOURCE\tFILES\tSKIPPED\tSIZE")
				for _, imp := range imports {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
						imp.ImportedAt.Local().Format(time.DateTime), imp.Source, imp.Files, imp.Skipped,
						humanize.IBytes(uint64(imp.TotalBytes))) // #nosec G115
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&top, "top", 10, "number of most seen addresses to list (0 disables)")
	cmd.Flags().IntVar(&recent, "recent", 5, "number of recent imports to list (0 disables)")

	cmd.AddCommand(newClearCmd(e))

	return cmd
}

func newClearCmd(e *env) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every archived import",
		Long: `Delete every import, scan file and sighting from the archive. The schema
is kept. Received dump directories on disk are not touched.`,
		Example: `  macsniff-host stats clear --yes`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to clear the archive without --yes")
			}
			ctx := cmd.Context()
			db, err := e.openArchive(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			if err := persistence.ClearArchive(ctx, db); err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "Archive %s cleared\n", e.archivePath())

			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")

	return cmd
}
