package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/order-intake/internal/bootstrap"
	"github.com/joseph-ayodele/order-intake/internal/common"
	"github.com/joseph-ayodele/order-intake/internal/entity"
	"github.com/joseph-ayodele/order-intake/internal/export"
	"github.com/joseph-ayodele/order-intake/internal/repository"
)

const cmdTimeout = 2 * time.Minute

func newMigrateCmd() *cobra.Command {
	var versionOnly bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			rcfg := bootstrap.RepositoryConfig(cfg)
			if !versionOnly {
				if err := repository.Migrate(rcfg, logger); err != nil {
					return err
				}
			}
			v, dirty, err := repository.MigrationVersion(rcfg)
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(map[string]any{"version": v, "dirty": dirty})
			}
			fmt.Printf("schema version %d (dirty=%t)\n", v, dirty)
			return nil
		},
	}
	cmd.Flags().BoolVar(&versionOnly, "version", false, "only print the current schema version")
	return cmd
}

func newBatchesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batches",
		Short: "Inspect stored batches",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List batches, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout)
			defer cancel()
			b, _, closeFn, err := openBackend(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			batches, err := b.Batches(ctx)
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(batches)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "BATCH\tCREATED\tLINES\tACCOUNT\tNOTE")
			for _, bt := range batches {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", bt.BatchID, bt.CreatedAt.Format(time.RFC3339), bt.LineCount, bt.Account, bt.Note)
			}
			return w.Flush()
		},
	}

	show := &cobra.Command{
		Use:   "show <batch-id>",
		Short: "Print the stored lines of a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout)
			defer cancel()
			b, _, closeFn, err := openBackend(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			rows, err := b.LoadBatch(ctx, args[0])
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(rows)
			}
			return printRows(rows)
		},
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout)
			defer cancel()
			b, _, closeFn, err := openBackend(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			st, err := b.Stats(ctx)
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(st)
			}
			fmt.Printf("batches: %d\nlines:   %d\n", st.TotalBatches, st.TotalLines)
			if st.LatestBatch != nil {
				fmt.Printf("latest:  %s (%s)\n", st.LatestBatch.BatchID, st.LatestBatch.CreatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.AddCommand(list, show, stats)
	return cmd
}

func newAggregateCmd() *cobra.Command {
	var (
		out     string
		account string
	)
	cmd := &cobra.Command{
		Use:   "aggregate <batch-id>",
		Short: "Rebuild the aggregation table of a stored batch",
		Long: `Reload a stored batch, print its aggregation table and optionally
write the full purchasing report workbook with --out.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout)
			defer cancel()
			b, app, closeFn, err := openBackend(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			lines, summary, err := b.AggregateBatch(ctx, args[0])
			if err != nil {
				return err
			}

			if out != "" {
				exporter := exporterFor(app)
				if err := writeWorkbook(ctx, exporter, lines, account, out); err != nil {
					return err
				}
				logger.Info("workbook written", "path", out, "lines", len(lines))
			}
			if outputJSON {
				return printJSON(summary)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "商品名\tサイズ\t備考\t数量\t単位")
			for _, a := range summary {
				fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%s\n", a.ProductName, a.Size, a.Remark, a.QuantitySum, a.Unit)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "write the report workbook to this path")
	cmd.Flags().StringVar(&account, "account", "", "account whose export layout to use")
	return cmd
}

func exporterFor(app *bootstrap.App) *export.Service {
	if app != nil {
		return app.Exporter
	}
	layouts, err := export.LoadLayout(cfg.Intake.LayoutPath)
	if err != nil {
		logger.Warn("failed to load export layout, using defaults", "error", err)
		layouts = nil
	}
	return export.NewService(layouts, cfg.Intake.Location(), logger)
}

func writeWorkbook(ctx context.Context, exporter *export.Service, lines []entity.OrderLine, account, path string) error {
	b, err := exporter.Workbook(ctx, lines, account)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func newHistoryCmd() *cobra.Command {
	var (
		batchID string
		partner string
		from    string
		to      string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query stored lines across batches (local store only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				return fmt.Errorf("history reads the local store; drop --addr")
			}
			f := repository.HistoryFilter{BatchID: batchID, Partner: partner, Limit: limit}
			if from != "" {
				t, err := common.ParseReferenceDate(from)
				if err != nil {
					return fmt.Errorf("--from: %w", err)
				}
				f.From = t
			}
			if to != "" {
				t, err := common.ParseReferenceDate(to)
				if err != nil {
					return fmt.Errorf("--to: %w", err)
				}
				f.To = t.AddDate(0, 0, 1)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout)
			defer cancel()
			_, app, closeFn, err := openBackend(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			rows, err := app.Repo.History(ctx, f)
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(rows)
			}
			return printRows(rows)
		},
	}
	cmd.Flags().StringVar(&batchID, "batch", "", "only this batch")
	cmd.Flags().StringVar(&partner, "partner", "", "partner name contains")
	cmd.Flags().StringVar(&from, "from", "", "stored on or after YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "stored on or before YYYY-MM-DD")
	cmd.Flags().IntVar(&limit, "limit", 200, "maximum rows")
	return cmd
}

func printRows(rows []entity.PersistedRow) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tBATCH\t伝票番号\t発注日\t取引先名\t商品名\t数量\t単位\tデータ元")
	for _, r := range rows {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%g\t%s\t%s\n",
			r.ID, r.BatchID, r.OrderID, r.OrderDate, r.PartnerName, r.ProductName, r.Quantity, r.Unit, r.DataSource)
	}
	return w.Flush()
}
