package main

import (
	"github.com/spf13/cobra"

	"github.com/backmassage/vidoptimizer/internal/check"
	"github.com/backmassage/vidoptimizer/internal/config"
	"github.com/backmassage/vidoptimizer/internal/logging"
)

func newCheckCommand(flags *config.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report ffmpeg, ffprobe and encoder availability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			if err := cfg.Validate(false); err != nil {
				return err
			}
			log, err := logging.NewLogger(cfg)
			if err != nil {
				return err
			}
			defer log.Close()

			check.RunCheck(cmd.Context(), cfg, log)
			if err := check.CheckDeps(cmd.Context(), cfg); err != nil {
				log.Error("Configured encode cannot run: %v", err)
				return errBatchFailed
			}
			log.Success("Ready to encode %s with %s", cfg.Codec.Label(), check.RequiredEncoder(cfg.Codec, cfg.Acceleration))
			return nil
		},
	}
}
