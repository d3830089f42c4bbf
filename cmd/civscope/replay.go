package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/spf13/cobra"

	"civscope.ai/internal/explorer/replay"
	"civscope.ai/internal/persistence/record"
)

func replayCmd() *cobra.Command {
	var (
		dir      string
		from, to uint64
		eraID    string
		interval time.Duration
		verify   bool
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a recording headlessly and print per-tick frame digests",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := record.ReadAll(dir)
			if err != nil {
				return err
			}
			opts := replay.Options{
				Logger:         log.New(io.Discard, "", 0),
				ReplayInterval: interval,
				EraID:          eraID,
			}
			if cmd.Flags().Changed("from") {
				opts.From = &from
			}
			if cmd.Flags().Changed("to") {
				opts.To = &to
			}
			res, err := replay.Run(entries, opts)
			if err != nil {
				return err
			}
			if verify {
				again, err := replay.Run(entries, opts)
				if err != nil {
					return err
				}
				if again.Digest != res.Digest {
					bad.Fprintf(cmd.ErrOrStderr(), "replay mismatch: %s != %s\n", res.Digest, again.Digest)
					return fmt.Errorf("replay is not deterministic")
				}
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printReplay(out, len(entries), res)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "recording", "", "recording directory (batches-*.jsonl.zst)")
	cmd.Flags().Uint64Var(&from, "from", 0, "start tick (inclusive)")
	cmd.Flags().Uint64Var(&to, "to", 0, "stop tick (inclusive)")
	cmd.Flags().StringVar(&eraID, "era", "", "lock playback to an era id")
	cmd.Flags().DurationVar(&interval, "interval", 120*time.Millisecond, "virtual replay step interval")
	cmd.Flags().BoolVar(&verify, "verify", false, "run twice and compare digests")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	_ = cmd.MarkFlagRequired("recording")
	return cmd
}

func printReplay(w io.Writer, batches int, res replay.Result) {
	subtle.Fprintf(w, "batches=%d snapshots=%d frames=%d\n", batches, res.Snapshots, len(res.Frames))
	for _, f := range res.Frames {
		fmt.Fprintf(w, "  %s nodes=%-4d links=%-4d %s\n",
			info.Sprintf("tick=%-8d", f.Tick), f.Nodes, f.Links, subtle.Sprint(f.Digest[:16]))
	}
	good.Fprintf(w, "replay ok: frames=%d digest=%s\n", len(res.Frames), res.Digest)
}
