// Command orderctl administers the order store: migrations, batch listings, re-aggregation and history.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/joseph-ayodele/order-intake/internal/bootstrap"
	"github.com/joseph-ayodele/order-intake/internal/common"
	"github.com/joseph-ayodele/order-intake/internal/entity"
	"github.com/joseph-ayodele/order-intake/internal/server"
)

var (
	addr       string
	outputJSON bool

	cfg    *common.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "orderctl",
	Short: "Administer the order intake store",
	Long: `orderctl manages the order intake store.

Batch commands read the local store configured through DB_DRIVER / DB_URL,
or a running ordersd when --addr is given.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = common.LoadConfig()
		logger = bootstrap.Logger(os.Stderr)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "", "ordersd gRPC address (default: open the local store)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")

	rootCmd.AddCommand(newMigrateCmd(), newBatchesCmd(), newAggregateCmd(), newHistoryCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// backend is the batch API served either by the local store or a remote ordersd.
type backend interface {
	Batches(ctx context.Context) ([]entity.Batch, error)
	LoadBatch(ctx context.Context, batchID string) ([]entity.PersistedRow, error)
	AggregateBatch(ctx context.Context, batchID string) ([]entity.OrderLine, []entity.AggregationRow, error)
	Stats(ctx context.Context) (*entity.BatchStats, error)
}

type remote struct{ c *server.OrderIntakeClient }

func (r remote) Batches(ctx context.Context) ([]entity.Batch, error) { return r.c.ListBatches(ctx) }

func (r remote) LoadBatch(ctx context.Context, id string) ([]entity.PersistedRow, error) {
	out, err := r.c.LoadBatch(ctx, id)
	if err != nil {
		return nil, err
	}
	return out.Rows, nil
}

func (r remote) AggregateBatch(ctx context.Context, id string) ([]entity.OrderLine, []entity.AggregationRow, error) {
	out, err := r.c.AggregateBatch(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return out.Lines, out.Summary, nil
}

func (r remote) Stats(ctx context.Context) (*entity.BatchStats, error) { return r.c.Stats(ctx) }

// openBackend returns the configured backend and its cleanup.
func openBackend(ctx context.Context) (backend, *bootstrap.App, func(), error) {
	if addr != "" {
		conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("dial %s: %w", addr, err)
		}
		return remote{c: server.NewOrderIntakeClient(conn)}, nil, func() { _ = conn.Close() }, nil
	}
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Persist: true}, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return app.Intake, app, app.Close, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
