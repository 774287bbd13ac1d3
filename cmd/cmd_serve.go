// Copyright 2026 The Ridemap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/ridemap/ridemap/trips"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the hotspot API over HTTP",
	RunE: func(_ *cobra.Command, _ []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		repo, err := trips.NewSQLRepository(db)
		if err != nil {
			return fmt.Errorf("initializing repository: %w", err)
		}

		log.Printf("Listening on %s", serveListen)

		return trips.NewServer(repo).Run(serveListen)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(
		&serveListen,
		"listen",
		"localhost:8080",
		"Address to listen on",
	)
}
