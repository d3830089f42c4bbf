package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"civscope.ai/internal/persistence/indexdb"
)

func erasCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "eras",
		Short: "List recorded eras and tick coverage from the sqlite index",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("index: %w", err)
			}
			idx, err := indexdb.OpenSQLite(path)
			if err != nil {
				return err
			}
			defer idx.Close()

			ctx := cmd.Context()
			cov, err := idx.Coverage(ctx)
			if err != nil {
				return err
			}
			eras, err := idx.Eras(ctx)
			if err != nil {
				return err
			}
			printEras(cmd.OutOrStdout(), cov, eras)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "index", "./data/index/civscope.sqlite", "sqlite index path")
	return cmd
}

func printEras(w io.Writer, cov indexdb.Coverage, eras []indexdb.EraRow) {
	if cov.Count == 0 {
		warn.Fprintln(w, "index is empty")
		return
	}
	brand.Fprintf(w, "%d ticks indexed", cov.Count)
	subtle.Fprintf(w, " (%d..%d)\n", cov.First, cov.Last)
	if len(eras) == 0 {
		warn.Fprintln(w, "no eras recorded")
		return
	}
	rows := make([][]string, 0, len(eras))
	for _, e := range eras {
		rows = append(rows, []string{
			e.ID,
			e.Title,
			e.EntryType,
			fmt.Sprintf("%d..%d", e.StartTick, e.EndTick),
			strconv.Itoa(e.Affected),
			fmt.Sprintf("%d..%d", e.FirstSeenTick, e.LastSeenTick),
		})
	}
	table(w, []string{"ID", "TITLE", "ENTRY", "RANGE", "AFFECTED", "SEEN"}, rows)
}
