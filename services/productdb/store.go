// Copyright (C) 2025 Shopassist Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package productdb wraps the read-only product catalog that structured
// queries run against.
package productdb

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
)

// Store executes validated SELECT statements against the product catalog.
//
// # Description
//
// The catalog is a single sqlite table named product. Model-generated SQL is
// validated by Validate before it reaches Execute; Execute itself only adds
// a row cap so a runaway query cannot flood a chat response.
//
// # Limitations
//
//   - Execute trusts that the caller validated the statement. It is not a
//     second line of defense.
type Store struct {
	db      *sql.DB
	maxRows int
}

const defaultMaxRows = 5

// Open opens the catalog at path, creating the product table if needed.
// Use ":memory:" for an ephemeral store in tests.
func Open(path string, maxRows int) (*Store, error) {
	if maxRows < 1 {
		maxRows = defaultMaxRows
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open product db: %w", err)
	}

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create product table: %w", err)
	}

	return &Store{db: db, maxRows: maxRows}, nil
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS product (
	product_link TEXT,
	title TEXT,
	brand TEXT,
	price REAL,
	discount REAL,
	avg_rating REAL,
	total_ratings INTEGER
)`

func (s *Store) Close() error {
	return s.db.Close()
}

// Execute runs a validated SELECT and returns at most maxRows rows as
// column-keyed maps, preserving result order.
func (s *Store) Execute(ctx context.Context, query string) ([]map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute product query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read result columns: %w", err)
	}

	var results []map[string]any
	for rows.Next() {
		if len(results) >= s.maxRows {
			break
		}

		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			v := values[i]
			// sqlite hands text back as []byte through the generic scanner.
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return results, nil
}

// Count returns the number of catalog rows.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM product").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

// LoadCSV ingests catalog rows from a CSV stream with a header row matching
// the product table columns. Existing rows are kept; callers wanting a clean
// reload should start from an empty database file.
func (s *Store) LoadCSV(ctx context.Context, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read csv header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[col] = i
	}
	for _, required := range []string{"product_link", "title", "brand", "price", "discount", "avg_rating", "total_ratings"} {
		if _, ok := idx[required]; !ok {
			return 0, fmt.Errorf("csv header missing column %q", required)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin catalog load: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO product (product_link, title, brand, price, discount, avg_rating, total_ratings) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("prepare catalog insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read csv record: %w", err)
		}

		field := func(name string) string {
			i := idx[name]
			if i >= len(record) {
				return ""
			}
			return record[i]
		}

		_, err = stmt.ExecContext(ctx,
			field("product_link"),
			field("title"),
			field("brand"),
			parseFloat(field("price")),
			parseFloat(field("discount")),
			parseFloat(field("avg_rating")),
			parseInt(field("total_ratings")),
		)
		if err != nil {
			return 0, fmt.Errorf("insert catalog row: %w", err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit catalog load: %w", err)
	}

	slog.Info("Loaded product catalog", "rows", inserted)
	return inserted, nil
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func parseInt(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}
