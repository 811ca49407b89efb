package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/catalogit/config"
	"github.com/poiesic/catalogit/ingestion"
	"github.com/poiesic/catalogit/normalize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func findCommand(t *testing.T, app *cli.App, name string) *cli.Command {
	t.Helper()
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	t.Fatalf("command %q not found", name)
	return nil
}

func findStringFlag(flags []cli.Flag, name string) *cli.StringFlag {
	for _, flag := range flags {
		if f, ok := flag.(*cli.StringFlag); ok && f.Name == name {
			return f
		}
	}
	return nil
}

func TestAppFlags(t *testing.T) {
	app := newApp()

	t.Run("config reads CATALOGIT_CONFIG", func(t *testing.T) {
		f := findStringFlag(app.Flags, "config")
		require.NotNil(t, f)
		assert.Equal(t, []string{"CATALOGIT_CONFIG"}, f.EnvVars)
		assert.Empty(t, f.Value)
	})

	t.Run("log-level has no default", func(t *testing.T) {
		f := findStringFlag(app.Flags, "log-level")
		require.NotNil(t, f)
		assert.Empty(t, f.Value)
		assert.Equal(t, []string{"l"}, f.Aliases)
	})

	t.Run("every command is registered", func(t *testing.T) {
		for _, name := range []string{"ingest", "schema", "ping", "reembed", "search", "runs"} {
			assert.NotNil(t, findCommand(t, app, name).Action, name)
		}
	})

	t.Run("search column defaults to combined", func(t *testing.T) {
		f := findStringFlag(findCommand(t, app, "search").Flags, "column")
		require.NotNil(t, f)
		assert.Equal(t, "combined", f.Value)
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := parseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := parseLevel("verbose")
	assert.ErrorContains(t, err, "invalid log level")
}

func TestNewLogger(t *testing.T) {
	t.Run("filters below level", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := newLogger(config.LogConfig{Level: "warn"}, &buf)
		require.NoError(t, err)

		logger.Info("hidden")
		logger.Warn("shown")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("tees into log file", func(t *testing.T) {
		var buf bytes.Buffer
		path := filepath.Join(t.TempDir(), "catalogit.log")
		logger, err := newLogger(config.LogConfig{Level: "info", File: path, MaxSizeMB: 1}, &buf)
		require.NoError(t, err)

		logger.Info("ingestion started", "run_id", "r1")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "run_id=r1")
		assert.Contains(t, buf.String(), "run_id=r1")
	})
}

func TestExitCode(t *testing.T) {
	wrap := func(kind error) error {
		return &ingestion.StageError{Stage: ingestion.StageFiltered, Err: fmt.Errorf("%w: boom", kind)}
	}
	assert.Equal(t, exitConnectivity, exitCode(wrap(ingestion.ErrConnectivity)))
	assert.Equal(t, exitSource, exitCode(wrap(ingestion.ErrSourceUnavailable)))
	assert.Equal(t, exitEmpty, exitCode(wrap(ingestion.ErrEmptyResult)))
	assert.Equal(t, exitVectorize, exitCode(wrap(ingestion.ErrVectorization)))
	assert.Equal(t, exitPersistence, exitCode(wrap(ingestion.ErrPersistence)))
	assert.Equal(t, exitFailure, exitCode(fmt.Errorf("other")))
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, &ingestion.Report{
		RunID:     "r1",
		Source:    "products.csv",
		Stage:     ingestion.StageDone,
		RowsRead:  3,
		Truncated: true,
		Accepted:  2,
		Dropped:   1,
		Reasons:   map[normalize.DropReason]int{normalize.ReasonShortTitle: 1},
		Processed: 2,
		Duration:  1500 * time.Millisecond,
	})

	out := buf.String()
	assert.Contains(t, out, "Run r1 (products.csv)")
	assert.Contains(t, out, "rows read: 3 (truncated)")
	assert.Contains(t, out, "short_title")
	assert.Contains(t, out, "persisted: 2")
}

const products = `asin,title,description,brand,categories,final_price,rating,reviews_count
B001,Wireless Mouse,Ergonomic 2.4GHz mouse,Logi,Electronics > Accessories,$19.99,4.6,"1,234"
B002,Mechanical Keyboard,Clicky switches,KeyCo,Electronics > Keyboards,$89.00,4.1,310
`

func writeFixture(t *testing.T) (configPath, csvPath string) {
	t.Helper()
	dir := t.TempDir()

	csvPath = filepath.Join(dir, "products.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(products), 0o600))

	configPath = filepath.Join(dir, "catalogit.toml")
	cfg := fmt.Sprintf(`
[store]
path = %q
ledger_dir = %q

[ai]
provider = "mock"
dimension = 8

[log]
level = "error"
`, filepath.Join(dir, "catalog.db"), filepath.Join(dir, "runs"))
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0o600))
	return configPath, csvPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	app := newApp()
	app.Writer = &buf
	err := app.Run(append([]string{"catalogit"}, args...))
	return buf.String(), err
}

func TestCommands(t *testing.T) {
	configPath, csvPath := writeFixture(t)

	out, err := run(t, "--config", configPath, "ingest", csvPath)
	require.NoError(t, err)
	assert.Contains(t, out, "persisted: 2")

	out, err = run(t, "--config", configPath, "search", "--limit", "5", "keyboard")
	require.NoError(t, err)
	assert.Contains(t, out, "B002")

	out, err = run(t, "--config", configPath, "runs")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "succeeded")

	out, err = run(t, "--config", configPath, "runs", "--prune", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "Pruned 1 runs")

	out, err = run(t, "--config", configPath, "ping")
	require.NoError(t, err)
	assert.Contains(t, out, "store:    ok")
}

func TestCommandErrors(t *testing.T) {
	configPath, _ := writeFixture(t)

	t.Run("ingest needs a location", func(t *testing.T) {
		_, err := run(t, "--config", configPath, "ingest")
		assert.ErrorContains(t, err, "location is required")
	})

	t.Run("search needs text", func(t *testing.T) {
		_, err := run(t, "--config", configPath, "search")
		assert.Error(t, err)
	})

	t.Run("unknown column", func(t *testing.T) {
		_, err := run(t, "--config", configPath, "search", "--column", "colour", "mouse")
		assert.ErrorContains(t, err, "colour")
	})

	t.Run("bad log level", func(t *testing.T) {
		_, err := run(t, "--config", configPath, "--log-level", "loud", "schema")
		assert.ErrorContains(t, err, "invalid log level")
	})

	t.Run("missing config file", func(t *testing.T) {
		_, err := run(t, "--config", filepath.Join(t.TempDir(), "absent.toml"), "schema")
		assert.Error(t, err)
	})
}
