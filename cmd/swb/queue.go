package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/config"
	"github.com/zulandar/switchboard/internal/db"
	"github.com/zulandar/switchboard/internal/fairness"
)

func newQueueCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the per-user fairness queue",
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to Switchboard config file")

	cmd.AddCommand(newQueueStatusCmd(&configPath))
	cmd.AddCommand(newQueueClearCmd(&configPath))
	cmd.AddCommand(newQueueClearAllCmd(&configPath))
	return cmd
}

// openQueue loads config and builds a fairness queue over the database.
func openQueue(configPath string) (*fairness.Queue, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return nil, err
	}
	store, err := fairness.NewGormStore(gormDB)
	if err != nil {
		return nil, err
	}
	return fairness.NewQueue(store)
}

func newQueueStatusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status [user-id]",
		Short: "Show queued requests, for one user or all users",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, err := openQueue(*configPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				st, err := queue.Status(args[0])
				if err != nil {
					return err
				}
				printUserStatus(out, st)
				return nil
			}

			all, err := queue.StatusAll()
			if err != nil {
				return err
			}
			if len(all) == 0 {
				fmt.Fprintln(out, "Queue is empty")
				return nil
			}
			ids := make([]string, 0, len(all))
			for id := range all {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				printUserStatus(out, all[id])
			}
			return nil
		},
	}
}

func printUserStatus(out io.Writer, st fairness.UserStatus) {
	state := "free"
	if !st.Free {
		state = "busy"
	}
	fmt.Fprintf(out, "%s: %s, %d pending request(s)\n", st.UserID, state, st.PendingCount)
	for i, req := range st.PendingRequests {
		fmt.Fprintf(out, "  %d. %s\n", i+1, req)
	}
}

func newQueueClearCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <user-id>",
		Short: "Clear one user's pending requests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, err := openQueue(*configPath)
			if err != nil {
				return err
			}
			if err := queue.Clear(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared pending requests for %s\n", args[0])
			return nil
		},
	}
}

func newQueueClearAllCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-all",
		Short: "Clear every user's pending requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, err := openQueue(*configPath)
			if err != nil {
				return err
			}
			if err := queue.ClearAll(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cleared all pending requests")
			return nil
		},
	}
}
