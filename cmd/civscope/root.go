package main

import (
	"github.com/spf13/cobra"
)

var version = "0.1.0"

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "civscope",
		Short: "civscope: temporal state and interaction engine for civilization snapshots",
		Long: brand.Sprint("civscope") + " polls a simulation, keeps a bounded snapshot history and\n" +
			subtle.Sprint("serves playback-aware frames to presentation clients"),
		Version:      version,
		SilenceUsage: true,
	}
	root.SetVersionTemplate("civscope {{ .Version }}\n")
	root.AddCommand(
		serveCmd(),
		replayCmd(),
		erasCmd(),
		watchCmd(),
	)
	return root
}
