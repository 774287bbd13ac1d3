// Copyright 2026 The Ridemap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/ridemap/ridemap/trips"
	"github.com/ridemap/ridemap/utils"
)

var importCmd = &cobra.Command{
	Use:   "import <csv>",
	Short: "Load a trips CSV into the local database",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		repo, err := trips.NewSQLRepository(db)
		if err != nil {
			return fmt.Errorf("initializing repository: %w", err)
		}

		if err := repo.CreateSchema(); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}

		rows, err := repo.ImportCSV(args[0])
		if err != nil {
			return err
		}

		log.Printf("Imported %s trips from %s", utils.FormatInt(rows), args[0])

		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
