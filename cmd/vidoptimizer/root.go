package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/backmassage/vidoptimizer/internal/config"
)

func newRootCommand() *cobra.Command {
	var flags config.Flags

	rootCmd := &cobra.Command{
		Use:           "vidoptimizer [flags] <input_dir> <output_dir>",
		Short:         "Batch-transcode a directory of videos with ffmpeg",
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, &flags, args)
		},
	}
	config.BindFlags(rootCmd.PersistentFlags(), &flags)

	rootCmd.AddCommand(newCheckCommand(&flags))
	rootCmd.AddCommand(newConfigCommand())
	return rootCmd
}

// loadConfig layers defaults, the config file and explicitly set flags.
func loadConfig(cmd *cobra.Command, flags *config.Flags) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if _, _, err := config.LoadFile(&cfg, flags.ConfigPath); err != nil {
		return nil, err
	}
	flags.Apply(cmd.Flags(), &cfg)
	return &cfg, nil
}
