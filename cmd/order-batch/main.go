package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joseph-ayodele/order-intake/internal/bootstrap"
	"github.com/joseph-ayodele/order-intake/internal/common"
	"github.com/joseph-ayodele/order-intake/internal/entity"
	"github.com/joseph-ayodele/order-intake/internal/services/intake"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir     = flag.String("dir", "", "directory of order files to process (required)")
		out     = flag.String("out", "", "output XLSX path (optional, defaults to <parent of dir>/<YYMMDD_HHMM>.xlsx)")
		persist = flag.Bool("persist", false, "store the working set as a batch")
		batchID = flag.String("batch", "", "batch id (optional, defaults to YYMMDD_HHMM)")
		note    = flag.String("note", "", "batch note")
		account = flag.String("account", "", "account whose export layout to use")
		refDate = flag.String("date", "", "reference date YYYY-MM-DD for inferring missing years")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *refDate != "" {
		if _, err := common.ParseReferenceDate(*refDate); err != nil {
			printError("Error: invalid --date, use YYYY-MM-DD: %v\n", err)
			os.Exit(1)
		}
	}

	logger := bootstrap.Logger(os.Stderr)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := common.LoadConfig()
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Persist: *persist}, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	logger.Info("starting ingestion", "dir", *dir, "persist", *persist)
	res, stats, err := app.Intake.IngestDirectory(ctx, intake.DirectoryRequest{
		Root:          *dir,
		SkipHidden:    true,
		ReferenceDate: *refDate,
		Persist:       *persist,
		Batch:         entity.BatchMeta{BatchID: *batchID, Note: *note, Account: *account},
	})
	if err != nil {
		logger.Error("ingestion failed", "error", err)
		os.Exit(1)
	}
	logger.Info("ingestion complete",
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"lines", len(res.Lines),
	)

	for _, m := range res.Messages() {
		fmt.Println(m)
	}

	if *out == "" {
		*out = filepath.Join(filepath.Dir(filepath.Clean(*dir)), app.Exporter.FileName())
	}
	b, err := app.Exporter.Workbook(ctx, res.Lines, *account)
	if err != nil {
		logger.Error("failed to render workbook", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, b, 0o644); err != nil {
		logger.Error("failed to write workbook", "path", *out, "error", err)
		os.Exit(1)
	}

	fmt.Printf("wrote %d lines (%d groups) to %s\n", len(res.Lines), len(res.Summary), *out)
	if res.Batch != nil {
		fmt.Printf("stored batch %s\n", res.Batch.BatchID)
	}
}
