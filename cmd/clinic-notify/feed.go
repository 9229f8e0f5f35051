package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/goliatone/go-clinic-notifications/pkg/client"
	"github.com/spf13/cobra"
)

func newFeedCmd(opts *rootOptions) *cobra.Command {
	var (
		token string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Print the latest notifications of the token's user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				token = os.Getenv(envPrefix + "_TOKEN")
			}
			if token == "" {
				return errors.New("--token or " + envPrefix + "_TOKEN is required")
			}
			cfg, err := loadConfig(opts.configFile)
			if err != nil {
				return err
			}
			if limit <= 0 {
				limit = cfg.Client.LatestLimit
			}
			api, err := client.NewAPIClient(cfg.Client.BaseURL,
				client.WithToken(token),
				client.WithTimeout(cfg.Client.Timeout),
			)
			if err != nil {
				return err
			}
			feed, err := api.Latest(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "unread: %d\n", feed.UnreadCount)
			for _, item := range feed.Data {
				state := "unread"
				if item.ReadAt != nil {
					state = "read"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", item.ID, item.Time.Format(time.RFC3339), state, item.Title)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "bearer token")
	cmd.Flags().IntVar(&limit, "limit", 0, "items to fetch (defaults to client.latest_limit)")
	return cmd
}
