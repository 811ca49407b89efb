package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/poiesic/catalogit"
	"github.com/poiesic/catalogit/ai"
	"github.com/poiesic/catalogit/core"
	"github.com/poiesic/catalogit/ingestion"
	"github.com/poiesic/catalogit/normalize"
	"github.com/poiesic/catalogit/search"
	"github.com/urfave/cli/v2"
)

// Exit codes of a failed ingest, one per failure kind.
const (
	exitFailure      = 1
	exitConnectivity = 2
	exitSource       = 3
	exitEmpty        = 4
	exitVectorize    = 5
	exitPersistence  = 6
)

func exitCode(err error) int {
	switch {
	case errors.Is(err, ingestion.ErrConnectivity):
		return exitConnectivity
	case errors.Is(err, ingestion.ErrSourceUnavailable):
		return exitSource
	case errors.Is(err, ingestion.ErrEmptyResult):
		return exitEmpty
	case errors.Is(err, ingestion.ErrVectorization):
		return exitVectorize
	case errors.Is(err, ingestion.ErrPersistence):
		return exitPersistence
	default:
		return exitFailure
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func openCatalog(ctx context.Context, c *cli.Context) (*catalogit.Catalog, error) {
	catalog, err := catalogit.Open(ctx, configFrom(c), catalogit.WithLogger(slog.Default()))
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	return catalog, nil
}

func ingestCommand(c *cli.Context) error {
	location := c.Args().First()
	if location == "" {
		return fmt.Errorf("catalog location is required")
	}

	cfg := configFrom(c)
	if c.IsSet("max-records") {
		cfg.Source.MaxRecords = c.Int("max-records")
	}
	if c.IsSet("batch-size") {
		cfg.Pipeline.BatchSize = c.Int("batch-size")
	}

	ctx, cancel := signalContext()
	defer cancel()

	catalog, err := openCatalog(ctx, c)
	if err != nil {
		return err
	}
	defer catalog.Close()

	var opts []ingestion.Option
	if c.Bool("progress") {
		opts = append(opts, ingestion.WithMonitor(newProgressMonitor(os.Stderr, cfg.Normalize.ReportInterval)))
	}
	pipeline, err := catalog.NewPipeline(opts...)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer pipeline.Release()

	report, err := pipeline.Run(ctx, location)
	if report != nil {
		printReport(c.App.Writer, report)
	}
	if err != nil {
		var stageErr *ingestion.StageError
		if errors.As(err, &stageErr) {
			slog.Error("ingestion failed", "stage", stageErr.Stage.String(), "err", stageErr.Err)
		}
		return cli.Exit(fmt.Sprintf("ingestion failed: %v", err), exitCode(err))
	}
	return nil
}

func printReport(w io.Writer, r *ingestion.Report) {
	fmt.Fprintf(w, "Run %s (%s)\n", r.RunID, r.Source)
	if r.Digest != "" {
		fmt.Fprintf(w, "  digest:    %s\n", r.Digest)
	}
	fmt.Fprintf(w, "  stage:     %s\n", r.Stage)
	fmt.Fprintf(w, "  rows read: %d", r.RowsRead)
	if r.Truncated {
		fmt.Fprint(w, " (truncated)")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  accepted:  %d\n", r.Accepted)
	fmt.Fprintf(w, "  dropped:   %d\n", r.Dropped)

	reasons := make([]normalize.DropReason, 0, len(r.Reasons))
	for reason := range r.Reasons {
		reasons = append(reasons, reason)
	}
	slices.Sort(reasons)
	for _, reason := range reasons {
		fmt.Fprintf(w, "    %-16s %d\n", reason, r.Reasons[reason])
	}

	fmt.Fprintf(w, "  persisted: %d\n", r.Processed)
	fmt.Fprintf(w, "  duration:  %s\n", r.Duration.Round(time.Millisecond))
}

func schemaCommand(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	catalog, err := openCatalog(ctx, c)
	if err != nil {
		return err
	}
	defer catalog.Close()

	if err := catalog.Store().EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Schema ready at %s\n", catalog.Config().Store.Path)
	return nil
}

func pingCommand(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	catalog, err := openCatalog(ctx, c)
	if err != nil {
		return err
	}
	defer catalog.Close()

	w := c.App.Writer
	if err := catalog.Store().TestConnectivity(ctx); err != nil {
		return cli.Exit(fmt.Sprintf("store: %v", err), exitConnectivity)
	}
	fmt.Fprintf(w, "store:    ok (%s)\n", catalog.Config().Store.Path)

	embedder := catalog.Embedder()
	checker, ok := embedder.(ai.HealthChecker)
	if !ok {
		fmt.Fprintf(w, "embedder: %s (no health endpoint)\n", embedder.ModelName())
		return nil
	}
	health, err := checker.Health(ctx)
	if err != nil {
		return cli.Exit(fmt.Sprintf("embedder: %v", err), exitVectorize)
	}
	if !health.Ready() {
		return cli.Exit(fmt.Sprintf("embedder: %s (status %s)", ai.ErrModelNotReady, health.Status), exitVectorize)
	}
	fmt.Fprintf(w, "embedder: ok (%s)\n", health.ModelName)
	return nil
}

func reembedCommand(c *cli.Context) error {
	cfg := configFrom(c)
	if c.IsSet("page-size") {
		cfg.Reembed.PageSize = c.Int("page-size")
	}
	if c.IsSet("max-retries") {
		cfg.Reembed.MaxRetries = c.Int("max-retries")
	}
	if c.IsSet("retry-delay") {
		cfg.Reembed.RetryDelay = c.Duration("retry-delay")
	}

	ctx, cancel := signalContext()
	defer cancel()

	catalog, err := openCatalog(ctx, c)
	if err != nil {
		return err
	}
	defer catalog.Close()

	reembedder, err := catalog.NewReembedder(os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to create reembedder: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Database: %s\n", cfg.Store.Path)
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", cfg.AI.EmbeddingHost)
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", cfg.AI.EmbeddingModel)
	fmt.Fprintln(os.Stderr)

	if _, err := reembedder.Run(ctx); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func searchQuery(c *cli.Context) (search.Query, error) {
	q := search.Query{
		Text:         c.Args().First(),
		Limit:        c.Int("limit"),
		SemanticOnly: c.Bool("semantic-only"),
		Brand:        c.String("brand"),
		Category:     c.String("category"),
	}
	if q.Text == "" {
		return q, search.ErrEmptyQuery
	}

	column, err := core.ParseVectorColumn(c.String("column"))
	if err != nil {
		return q, fmt.Errorf("%w: %q", err, c.String("column"))
	}
	q.Column = column

	if c.IsSet("min-similarity") {
		q.MinSimilarity = float32(c.Float64("min-similarity"))
	}
	for name, dst := range map[string]**float64{
		"min-price":  &q.MinPrice,
		"max-price":  &q.MaxPrice,
		"min-rating": &q.MinRating,
	} {
		if c.IsSet(name) {
			v := c.Float64(name)
			*dst = &v
		}
	}
	return q, nil
}

func searchCommand(c *cli.Context) error {
	q, err := searchQuery(c)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	catalog, err := openCatalog(ctx, c)
	if err != nil {
		return err
	}
	defer catalog.Close()

	searcher, err := catalog.NewSearcher()
	if err != nil {
		return fmt.Errorf("failed to create searcher: %w", err)
	}

	results, err := searcher.Search(ctx, q)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	printResults(c.App.Writer, results)
	return nil
}

func printResults(w io.Writer, results []*core.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSCORE\tID\tTITLE\tBRAND\tPRICE")
	for i, r := range results {
		price := "-"
		if r.Record.Price != nil {
			price = fmt.Sprintf("%.2f", *r.Record.Price)
		}
		fmt.Fprintf(tw, "%d\t%.3f\t%s\t%s\t%s\t%s\n", i+1, r.Score, r.Record.ID, r.Record.Title, r.Record.Brand, price)
	}
	tw.Flush()
}

func runsCommand(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	catalog, err := openCatalog(ctx, c)
	if err != nil {
		return err
	}
	defer catalog.Close()

	runs := catalog.Runs()
	if runs == nil {
		return fmt.Errorf("no run ledger configured (set store.ledger_dir)")
	}

	if c.IsSet("prune") {
		pruned, err := runs.PruneRuns(ctx, c.Int("prune"))
		if err != nil {
			return fmt.Errorf("failed to prune runs: %w", err)
		}
		fmt.Fprintf(c.App.Writer, "Pruned %d runs\n", pruned)
		return nil
	}

	if id := c.String("id"); id != "" {
		run, err := runs.GetRun(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load run %s: %w", id, err)
		}
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}

	list, err := runs.ListRuns(ctx, c.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	printRuns(c.App.Writer, list)
	return nil
}

func printRuns(w io.Writer, runs []*core.Run) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tSTAGE\tROWS\tACCEPTED\tPERSISTED\tSOURCE")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Status, r.Stage,
			r.RowsRead, r.Accepted, r.Persisted, r.Source)
	}
	tw.Flush()
}
