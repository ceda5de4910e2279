package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/config"
	"github.com/zulandar/switchboard/internal/db"
	"github.com/zulandar/switchboard/internal/debounce"
	"github.com/zulandar/switchboard/internal/fairness"
	"github.com/zulandar/switchboard/internal/mailbox"
	"github.com/zulandar/switchboard/internal/operator"
	"github.com/zulandar/switchboard/internal/platform"
	discordadapter "github.com/zulandar/switchboard/internal/platform/discord"
	slackadapter "github.com/zulandar/switchboard/internal/platform/slack"
	"github.com/zulandar/switchboard/internal/processor"
	"github.com/zulandar/switchboard/internal/recovery"
	"github.com/zulandar/switchboard/internal/web"
)

func newStartCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the Switchboard daemon",
		Long:  "Connects to the configured chat platform, buffers inbound messages per conversation, and dispatches batches downstream after the debounce window.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to Switchboard config file")
	return cmd
}

func runStart(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	store, err := fairness.NewGormStore(gormDB)
	if err != nil {
		return err
	}
	queue, err := fairness.NewQueue(store)
	if err != nil {
		return err
	}

	adapter, err := createAdapter(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect up front so the bot's own user ID is known before the
	// pipeline is wired. Daemon.Run's later Connect is a no-op.
	if err := adapter.Connect(ctx); err != nil {
		return fmt.Errorf("connect %s: %w", cfg.Platform, err)
	}
	botUserID := ""
	if ider, ok := adapter.(platform.BotUserIDer); ok {
		botUserID = ider.BotUserID()
	}

	mb := mailbox.New()
	sched := debounce.NewTimerScheduler()

	engine, err := recovery.New(recovery.Opts{
		Mailbox:          mb,
		Source:           adapter,
		BotUserID:        botUserID,
		Lookback:         cfg.Recovery.Lookback(),
		MinCheckInterval: cfg.Recovery.MinCheckInterval(),
		MaxProcessed:     cfg.Recovery.MaxProcessed,
		Out:              out,
	})
	if err != nil {
		return err
	}

	op, err := operator.New(operator.Opts{
		Mailbox:      mb,
		Scheduler:    sched,
		Recovery:     engine,
		Adapter:      adapter,
		Processor:    createProcessor(ctx, cfg),
		BatchTimeout: cfg.Batch.Timeout(),
		BotUserID:    botUserID,
		Out:          out,
	})
	if err != nil {
		return err
	}

	if cfg.Web.Addr != "" {
		go func() {
			if err := web.Start(ctx, web.StartOpts{
				Operator: op,
				Fairness: queue,
				DB:       gormDB,
				Addr:     cfg.Web.Addr,
				Out:      out,
			}); err != nil {
				log.Printf("swb: status server: %v", err)
			}
		}()
	}

	daemon, err := operator.NewDaemon(operator.DaemonOpts{
		Operator:   op,
		Adapter:    adapter,
		Fairness:   queue,
		DigestCron: cfg.Web.DigestCron,
		Channel:    cfg.Channel,
		Out:        out,
	})
	if err != nil {
		return err
	}

	// Handle OS signals for graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return daemon.Run(ctx)
}

// createAdapter builds a platform adapter from the config.
func createAdapter(cfg *config.Config) (platform.Adapter, error) {
	switch cfg.Platform {
	case "slack":
		return slackadapter.New(slackadapter.AdapterOpts{
			AppToken: cfg.Slack.AppToken,
			BotToken: cfg.Slack.BotToken,
		})
	case "discord":
		return discordadapter.New(discordadapter.AdapterOpts{
			BotToken: cfg.Discord.BotToken,
		})
	default:
		return nil, fmt.Errorf("swb: unsupported platform %q", cfg.Platform)
	}
}

// createProcessor selects the downstream processor: the HTTP endpoint
// when configured and reachable, the built-in mock otherwise.
func createProcessor(ctx context.Context, cfg *config.Config) processor.Processor {
	if cfg.Processor.Endpoint == "" {
		log.Printf("swb: no processor endpoint configured, using mock processor")
		return &processor.Mock{}
	}

	httpProc, err := processor.NewHTTP(processor.HTTPOpts{
		Endpoint: cfg.Processor.Endpoint,
		Timeout:  cfg.Processor.Timeout(),
		Retries:  cfg.Processor.Retries,
	})
	if err != nil {
		log.Printf("swb: processor endpoint rejected (%v), using mock processor", err)
		return &processor.Mock{}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := httpProc.HealthCheck(checkCtx); err != nil {
		log.Printf("swb: processor endpoint unreachable (%v), using mock processor", err)
		return &processor.Mock{}
	}
	return httpProc
}
