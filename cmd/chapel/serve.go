package main

import (
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/daryatsv/chapel/internal/config"
	"github.com/daryatsv/chapel/internal/courier"
	"github.com/daryatsv/chapel/internal/courier/discord"
	"github.com/daryatsv/chapel/internal/courier/telegram"
	"github.com/daryatsv/chapel/internal/dashboard"
	"github.com/daryatsv/chapel/internal/db"
	"github.com/daryatsv/chapel/internal/officiant"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chapel bot",
		Long:  "Connects to the configured chat platform and serves proposals, marriages, and statistics until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "chapel.yaml", "path to chapel config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gdb, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gdb); err != nil {
		return err
	}

	off, err := officiant.New(officiant.Opts{
		DB:        gdb,
		Retention: time.Duration(cfg.Proposals.RetentionHours) * time.Hour,
	})
	if err != nil {
		return err
	}

	adapter, err := newAdapter(cfg)
	if err != nil {
		return err
	}

	router, err := courier.NewRouter(courier.RouterOpts{
		DB:        gdb,
		Officiant: off,
		Adapter:   adapter,
		FontPaths: cfg.FontPaths,
		Out:       out,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := adapter.Connect(ctx); err != nil {
		return err
	}
	defer adapter.Close()

	events, err := adapter.Listen(ctx)
	if err != nil {
		return err
	}

	// Optional background sweep of lapsed proposals. Lazy query-time
	// purging keeps the state machine correct without it.
	if cfg.Proposals.SweepSchedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(cfg.Proposals.SweepSchedule, func() {
			if n, err := off.SweepExpired(); err != nil {
				log.Printf("chapel: sweep lapsed proposals: %v", err)
			} else if n > 0 {
				log.Printf("chapel: swept %d lapsed proposals", n)
			}
		}); err != nil {
			return fmt.Errorf("parse sweep schedule %q: %w", cfg.Proposals.SweepSchedule, err)
		}
		c.Start()
		defer c.Stop()
	}

	if cfg.Dashboard.Enabled {
		go func() {
			err := dashboard.Start(ctx, dashboard.StartOpts{
				DB:   gdb,
				Port: cfg.Dashboard.Port,
				Out:  out,
			})
			if err != nil {
				log.Printf("chapel: dashboard: %v", err)
			}
		}()
	}

	fmt.Fprintf(out, "Chapel is running on %s. Press Ctrl+C to stop.\n", cfg.Platform)

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "Shutting down.")
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			router.Handle(ctx, ev)
		}
	}
}

// newAdapter builds the platform adapter selected by config.
func newAdapter(cfg *config.Config) (courier.Adapter, error) {
	switch cfg.Platform {
	case "telegram":
		return telegram.New(telegram.AdapterOpts{BotToken: cfg.Telegram.Token})
	case "discord":
		return discord.New(discord.AdapterOpts{BotToken: cfg.Discord.Token})
	}
	return nil, fmt.Errorf("platform %q is not supported", cfg.Platform)
}
