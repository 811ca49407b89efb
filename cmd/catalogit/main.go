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
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "catalogit",
		Usage: "Ingest product catalogs into a searchable vector store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML configuration file",
				EnvVars: []string{"CATALOGIT_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error); overrides the config file",
				EnvVars: []string{"CATALOGIT_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-file",
				Usage:   "Also write logs to this file, rotating it by size",
				EnvVars: []string{"CATALOGIT_LOG_FILE"},
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to the catalog database; overrides the config file",
				EnvVars: []string{"CATALOGIT_DB"},
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Download, normalize, embed and store one catalog file",
				ArgsUsage: "<location>",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "max-records",
						Usage: "Read at most this many data rows (0 for no cap)",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records per embedding call",
					},
					&cli.BoolFlag{
						Name:  "progress",
						Usage: "Draw progress lines on stderr",
					},
				},
			},
			{
				Name:   "schema",
				Usage:  "Create the catalog tables and indexes",
				Action: schemaCommand,
			},
			{
				Name:   "ping",
				Usage:  "Check the catalog store and the embedding service",
				Action: pingCommand,
			},
			{
				Name:   "reembed",
				Usage:  "Recompute the vectors of every stored record",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "page-size",
						Usage: "Number of records read and rewritten together",
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for a page",
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search the catalog",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of results",
					},
					&cli.StringFlag{
						Name:  "column",
						Usage: "Vector column to match (title, description, combined)",
						Value: "combined",
					},
					&cli.Float64Flag{
						Name:  "min-similarity",
						Usage: "Minimum cosine similarity of semantic hits",
					},
					&cli.BoolFlag{
						Name:  "semantic-only",
						Usage: "Skip the full-text title match",
					},
					&cli.StringFlag{
						Name:  "brand",
						Usage: "Only records with exactly this brand",
					},
					&cli.StringFlag{
						Name:  "category",
						Usage: "Only records in this category",
					},
					&cli.Float64Flag{
						Name:  "min-price",
						Usage: "Minimum price",
					},
					&cli.Float64Flag{
						Name:  "max-price",
						Usage: "Maximum price",
					},
					&cli.Float64Flag{
						Name:  "min-rating",
						Usage: "Minimum rating",
					},
				},
			},
			{
				Name:   "runs",
				Usage:  "List recent ingestion runs",
				Action: runsCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of runs to list",
						Value: 20,
					},
					&cli.StringFlag{
						Name:  "id",
						Usage: "Show one run as JSON",
					},
					&cli.IntFlag{
						Name:  "prune",
						Usage: "Delete all but the N most recent runs",
					},
				},
			},
		},
	}
}
