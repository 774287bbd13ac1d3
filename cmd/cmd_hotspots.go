// Copyright 2026 The Ridemap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ridemap/ridemap/trips"
	"github.com/ridemap/ridemap/utils"
)

var hotspotsBorough string

var hotspotsCmd = &cobra.Command{
	Use:   "hotspots",
	Short: "List the detected pickup hotspots",
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

		filter := trips.Filter{}
		if hotspotsBorough != "" {
			boroughs, err := repo.Boroughs()
			if err != nil {
				return err
			}

			resolved, ok := trips.ResolveBorough(hotspotsBorough, boroughs)
			if !ok {
				return fmt.Errorf("unknown borough %q", hotspotsBorough)
			}

			filter.Borough = resolved
		}

		summaries, err := repo.ClusterSummaries(filter)
		if err != nil {
			return err
		}

		if len(summaries) == 0 {
			fmt.Println("No hotspots stored. Run `ridemap cluster` first.")

			return nil
		}

		a, b, c, d := strings.Repeat("─", 4), strings.Repeat("─", 10), strings.Repeat("─", 22), strings.Repeat("─", 16)
		fmt.Println("Pickup hotspots:")
		fmt.Printf("╭─%4s─┬─%-10s─┬─%-22s─┬─%-16s╮\n", a, b, c, d)
		fmt.Printf("│ %4s │ %-10s │ %-22s │ %-16s│\n", "Id", "Trips", "Centroid", "H3 cell")
		fmt.Printf("├─%4s─┼─%-10s─┼─%-22s─┼─%-16s┤\n", a, b, c, d)

		for _, s := range summaries {
			fmt.Printf(
				"│ %4d │ %10s │ %10.5f, %10.5f │ %-16s│\n",
				s.Cluster,
				utils.FormatInt(s.Trips),
				s.Centroid.Lat,
				s.Centroid.Lng,
				s.H3Cell,
			)
		}

		fmt.Printf("╰─%4s─┴─%-10s─┴─%-22s─┴─%-16s╯\n", a, b, c, d)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(hotspotsCmd)
	hotspotsCmd.Flags().StringVar(
		&hotspotsBorough,
		"borough",
		"",
		"Only list hotspots for this borough",
	)
}
