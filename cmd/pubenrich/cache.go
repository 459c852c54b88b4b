// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pubenrich/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the lookup cache",
	Long: `Cache operates on the SQLite lookup cache shared by enrich and biblio.
The cache only grows on its own; use clear to force a namespace to be
fetched again.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count entries per namespace",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCacheFromFlags(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := store.Stats(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, ns := range cache.Namespaces {
			fmt.Fprintf(out, "%-8s %d\n", ns, stats[ns])
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear <namespace>",
	Short: "Delete every entry of one namespace (genes, details, biblio, symbols)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ns, err := cache.ParseNamespace(args[0])
		if err != nil {
			return err
		}
		store, err := openCacheFromFlags(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := store.Clear(cmd.Context(), ns)
		if err != nil {
			return err
		}
		printSummary(cmd.OutOrStdout(), false, "Cleared %d %s entries.", n, ns)
		return nil
	},
}

var cacheExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every cache entry as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCacheFromFlags(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		path, _ := cmd.Flags().GetString("output")
		if path == "" {
			return store.Export(cmd.Context(), cmd.OutOrStdout())
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		if err := store.Export(cmd.Context(), f); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	},
}

func openCacheFromFlags(cmd *cobra.Command) (*cache.Store, error) {
	path, _ := cmd.Flags().GetString("cache-db")
	return openCache(path)
}

func init() {
	cacheCmd.PersistentFlags().String("cache-db", defaultCacheDB, "cache SQLite path")
	cacheExportCmd.Flags().StringP("output", "o", "", "write to file instead of stdout")

	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd, cacheExportCmd)
	rootCmd.AddCommand(cacheCmd)
}
