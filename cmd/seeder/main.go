package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"github.com/poiesic/catalogit"
	"github.com/poiesic/catalogit/config"
	"github.com/poiesic/catalogit/source"
)

var header = []string{
	"asin", "input_asin", "title", "description", "brand", "manufacturer",
	"categories", "final_price", "initial_price", "image_url", "rating", "reviews_count",
}

var (
	brands     = []string{"Logi", "KeyCo", "Acme", "Northwind", "Contoso", "Brewster", "Lumen"}
	adjectives = []string{"Wireless", "Mechanical", "Ergonomic", "Compact", "Portable", "Premium", "Stainless", "Smart"}
	nouns      = []string{"Mouse", "Keyboard", "Coffee Grinder", "Desk Lamp", "Headphones", "Water Bottle", "Backpack", "Monitor Stand"}
	categories = [][]string{
		{"Electronics", "Computer Accessories"},
		{"Home & Kitchen", "Coffee"},
		{"Office Products", "Lighting"},
		{"Sports & Outdoors", "Hydration"},
		{"Electronics", "Audio"},
	}
)

var (
	outFile     = flag.String("out", "products.csv", "output file; a compression extension is appended")
	count       = flag.Int("n", 1000, "number of rows to generate")
	seed        = flag.Uint64("seed", 1, "random seed")
	noise       = flag.Float64("noise", 0.1, "fraction of rows with a defect")
	compression = flag.String("compress", "", "compress the output: gzip, zstd or lz4")
	ingest      = flag.Bool("ingest", false, "ingest the generated file after writing it")
	configFile  = flag.String("config", "", "catalogit config file used with -ingest")
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()
}

// products returns an iterator over n generated catalog rows. A fraction of
// them carry the defects real exports have.
func products(rng *rand.Rand, n int, noise float64) iter.Seq[[]string] {
	return func(yield func([]string) bool) {
		for i := range n {
			if !yield(product(rng, i, rng.Float64() < noise)) {
				return
			}
		}
	}
}

func pick[T any](rng *rand.Rand, items []T) T {
	return items[rng.IntN(len(items))]
}

func product(rng *rand.Rand, i int, defective bool) []string {
	brand := pick(rng, brands)
	title := fmt.Sprintf("%s %s %s", brand, pick(rng, adjectives), pick(rng, nouns))
	cats := pick(rng, categories)
	price := 5 + rng.Float64()*495
	row := []string{
		fmt.Sprintf("B%09d", i),
		"",
		title,
		fmt.Sprintf("The %s is built for everyday use.", strings.ToLower(title)),
		brand,
		"",
		strings.Join(cats, " > "),
		fmt.Sprintf("$%.2f", price),
		fmt.Sprintf("%.2f", price*1.2),
		fmt.Sprintf("https://images.example.com/%d.jpg", i),
		strconv.FormatFloat(1+rng.Float64()*4, 'f', 1, 64),
		strconv.Itoa(rng.IntN(5000)),
	}
	if !defective {
		return row
	}

	switch rng.IntN(8) {
	case 0:
		row[2] = "  " // short title
	case 1:
		row[0], row[1] = "", fmt.Sprintf("B%09d", i) // id only in the fallback column
	case 2:
		row[4], row[5] = "", brand // brand only from the manufacturer
	case 3:
		row[6] = fmt.Sprintf("['%s', '%s']", cats[0], cats[1])
	case 4:
		row[7] = "N/A" // falls through to initial_price
	case 5:
		row[10] = "9.5" // clamped to the rating ceiling
	case 6:
		row[11] = fmt.Sprintf("%.1fK", rng.Float64()*10)
	case 7:
		row[0] = "" // synthetic id
		row[1] = ""
	}
	return row
}

func writeCatalog(w io.Writer, rows iter.Seq[[]string]) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return 0, err
	}
	n := 0
	for row := range rows {
		if err := cw.Write(row); err != nil {
			return n, err
		}
		n++
	}
	cw.Flush()
	return n, cw.Error()
}

func generate(path string, codec source.Compression) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	buf := bufio.NewWriter(f)
	w, err := source.Compress(codec, buf)
	if err != nil {
		return 0, err
	}

	rng := rand.New(rand.NewPCG(*seed, *seed))
	n, err := writeCatalog(w, products(rng, *count, *noise))
	if err != nil {
		return n, err
	}
	if err := w.Close(); err != nil {
		return n, err
	}
	if err := buf.Flush(); err != nil {
		return n, err
	}
	return n, f.Close()
}

func runIngest(ctx context.Context, path string) error {
	cfg := config.Defaults()
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			return err
		}
	}

	catalog, err := catalogit.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer catalog.Close()

	pipeline, err := catalog.NewPipeline()
	if err != nil {
		return err
	}
	defer pipeline.Release()

	report, err := pipeline.Run(ctx, path)
	if err != nil {
		return err
	}
	slog.Info("ingested", "run_id", report.RunID, "accepted", report.Accepted,
		"dropped", report.Dropped, "persisted", report.Processed)
	return nil
}

func main() {
	codec := source.Compression(*compression)
	path := *outFile + source.CompressionExt(codec)

	n, err := generate(path, codec)
	if err != nil {
		panic(err)
	}
	slog.Info("catalog written", "path", path, "rows", n)

	if *ingest {
		if err := runIngest(context.Background(), path); err != nil {
			panic(err)
		}
	}
}
