package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/config"
	"github.com/zulandar/switchboard/internal/db"
	"github.com/zulandar/switchboard/internal/jobs"
	"gorm.io/gorm"
)

func newJobsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage job records",
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to Switchboard config file")

	cmd.AddCommand(newJobsListCmd(&configPath))
	cmd.AddCommand(newJobsStatusCmd(&configPath))
	cmd.AddCommand(newJobsDeleteCmd(&configPath))
	cmd.AddCommand(newJobsRestoreCmd(&configPath))
	return cmd
}

// openJobsDB loads config and opens the migrated database.
func openJobsDB(configPath string) (*gorm.DB, error) {
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
	return gormDB, nil
}

func newJobsListCmd(configPath *string) *cobra.Command {
	var userID, status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List job records, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			gormDB, err := openJobsDB(*configPath)
			if err != nil {
				return err
			}
			recs, err := jobs.List(gormDB, jobs.ListFilters{UserID: userID, Status: status})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(recs) == 0 {
				fmt.Fprintln(out, "No jobs found")
				return nil
			}
			for _, r := range recs {
				fmt.Fprintf(out, "%s  %-16s  %-10s  %s\n", r.JobID, r.UserName, r.Status, r.Title)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "filter by user ID")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	return cmd
}

func newJobsStatusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id> <status>",
		Short: "Update a job's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			gormDB, err := openJobsDB(*configPath)
			if err != nil {
				return err
			}
			if err := jobs.UpdateStatus(gormDB, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s moved to %s\n", args[0], args[1])
			return nil
		},
	}
}

func newJobsDeleteCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <job-id>",
		Short: "Soft-delete a job record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gormDB, err := openJobsDB(*configPath)
			if err != nil {
				return err
			}
			if err := jobs.Delete(gormDB, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s deleted (restorable)\n", args[0])
			return nil
		},
	}
}

func newJobsRestoreCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <job-id>",
		Short: "Restore a soft-deleted job record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gormDB, err := openJobsDB(*configPath)
			if err != nil {
				return err
			}
			if err := jobs.Restore(gormDB, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s restored\n", args[0])
			return nil
		},
	}
}
