// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/catalogit"
	"github.com/poiesic/catalogit/config"
	"github.com/poiesic/catalogit/search"
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
}

func main() {
	cfg := config.Defaults()
	if path := os.Getenv("CATALOGIT_CONFIG"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			panic(err)
		}
	}

	ctx := context.Background()
	catalog, err := catalogit.Open(ctx, cfg)
	if err != nil {
		panic(err)
	}
	defer catalog.Close()
	searcher, err := catalog.NewSearcher(search.WithQueryLogging(false))
	if err != nil {
		panic(err)
	}

	text := "wireless mouse"
	if len(os.Args) > 1 {
		text = strings.Join(os.Args[1:], " ")
	}
	results, err := searcher.Search(ctx, search.Query{Text: text, Limit: 5})
	if err != nil {
		panic(err)
	}

	fmt.Printf("Found %d hits\n", len(results))
	for i, hit := range results {
		fmt.Printf("%d: '%s' (%s)[%0.3f]\n", i, hit.Record.Title, hit.Record.ID, hit.Score)
	}
}
