package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newRemindCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remind",
		Short: "Publish reminders for upcoming appointments once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configFile)
			if err != nil {
				return err
			}
			lgr, err := newLogger(opts)
			if err != nil {
				return err
			}
			a, err := bootstrap(cmd.Context(), cfg, lgr)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.module.Reminders().RunOnce(cmd.Context(), time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "due=%d published=%d failed=%d\n", result.Due, result.Published, result.Failed)
			return nil
		},
	}
}
