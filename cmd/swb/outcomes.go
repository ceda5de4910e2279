package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"
)

// statusClient fetches from a running daemon's status server.
var statusClient = &http.Client{Timeout: 5 * time.Second}

func fetchStatus(addr, path string, query url.Values) ([]byte, error) {
	u := url.URL{Scheme: "http", Host: addr, Path: path, RawQuery: query.Encode()}
	resp, err := statusClient.Get(u.String())
	if err != nil {
		return nil, fmt.Errorf("swb: status server at %s unreachable: %w", addr, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("swb: read status response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("swb: status server returned %d: %s", resp.StatusCode, body)
	}
	return body, nil
}

func newStatsCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show mailbox and timer counters from a running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := fetchStatus(addr, "/stats", nil)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(body))
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:8080", "status server address")
	return cmd
}

func newOutcomesCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "outcomes <channel> [thread]",
		Short: "Show buffered messages and their outputs for a conversation",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{"channel": {args[0]}}
			if len(args) == 2 {
				query.Set("thread", args[1])
			}
			body, err := fetchStatus(addr, "/final-outcomes", query)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(body))
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:8080", "status server address")
	return cmd
}
