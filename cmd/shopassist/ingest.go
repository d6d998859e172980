// Copyright (C) 2025 Shopassist Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/shopassist/shopassist/services/productdb"
	"github.com/shopassist/shopassist/services/search"
)

var (
	ingestFAQPath      string
	ingestProductsPath string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load FAQ and product catalog data into the backends",
	Long: `ingest loads the FAQ CSV into the Weaviate search index and the
product CSV into the sqlite catalog. Both loads are safe to repeat: FAQ
entries carry deterministic IDs and upsert, catalog loads append to the
configured database file.`,
	Run: func(cmd *cobra.Command, args []string) {
		runIngest()
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFAQPath, "faq", "", "path to the FAQ CSV (question,answer)")
	ingestCmd.Flags().StringVar(&ingestProductsPath, "products", "", "path to the product catalog CSV")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest() {
	ctx := context.Background()

	if ingestFAQPath == "" && ingestProductsPath == "" {
		log.Fatal("nothing to do: pass --faq and/or --products")
	}

	if ingestFAQPath != "" {
		client, err := newWeaviateClient()
		if err != nil {
			log.Fatalf("Failed to create Weaviate client: %v", err)
		}
		if err := search.EnsureSchema(ctx, client); err != nil {
			log.Fatalf("Failed to ensure Weaviate schema: %v", err)
		}

		f, err := os.Open(ingestFAQPath)
		if err != nil {
			log.Fatalf("Failed to open FAQ CSV: %v", err)
		}
		entries, err := search.ReadFaqCSV(f)
		f.Close()
		if err != nil {
			log.Fatalf("Failed to parse FAQ CSV: %v", err)
		}

		n, err := search.IngestFAQ(ctx, client, entries)
		if err != nil {
			log.Fatalf("FAQ ingestion failed: %v", err)
		}
		slog.Info("FAQ ingestion complete", "entries", n)
	}

	if ingestProductsPath != "" {
		store, err := productdb.Open(envOr("PRODUCT_DB_PATH", "db.sqlite"), 5)
		if err != nil {
			log.Fatalf("Failed to open product database: %v", err)
		}
		defer store.Close()

		f, err := os.Open(ingestProductsPath)
		if err != nil {
			log.Fatalf("Failed to open product CSV: %v", err)
		}
		n, err := store.LoadCSV(ctx, f)
		f.Close()
		if err != nil {
			log.Fatalf("Catalog load failed: %v", err)
		}
		slog.Info("Catalog load complete", "rows", n)
	}
}
