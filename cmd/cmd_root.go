// Copyright 2026 The Ridemap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/spf13/cobra"
)

type logWriter struct {
	writer io.Writer
}

func (w *logWriter) Write(bytes []byte) (int, error) {
	return fmt.Fprintf(w.writer, "%s %s", time.Now().Format("2006-01-02 15:04:05"), string(bytes))
}

func init() {
	log.SetFlags(0)
	log.SetOutput(&logWriter{writer: os.Stderr})
}

var rootCmd = &cobra.Command{
	Use:   "ridemap",
	Short: "taxi pickup hotspot analysis",
	Long: `
ridemap ingests taxi trip records, detects pickup hotspots with
density-based clustering over the great-circle metric, and serves the
resulting aggregates for reporting.
`,
}

var dbPath string

// openDB opens the trips database under the configured state directory.
func openDB() (*sql.DB, error) {
	db, err := sql.Open("duckdb", filepath.Join(dbPath, "ridemap.duckdb"))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return db, nil
}

var Version = "dev"

func Execute(version string) {
	Version = version

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&dbPath,
		"db-path",
		"db",
		"Base directory where state is stored",
	)
}
