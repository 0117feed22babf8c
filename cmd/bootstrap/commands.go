package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"adventure-story-api/internal/application/story"
	"adventure-story-api/internal/config"
	"adventure-story-api/internal/wire"
)

type configLoader func() (*config.Config, error)

func newMigrateCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the stories, story_nodes and story_jobs tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			// 显式迁移，不依赖 auto_migrate
			cfg.Database.AutoMigrate = false

			ctx := cmd.Context()
			m, cleanup, err := wire.InitializeMaintenance(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := m.DB.AutoMigrate(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %s database\n", m.DB.Driver())
			return nil
		},
	}
}

func newSweepCmd(load configLoader) *cobra.Command {
	var requeue bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Expire stuck processing jobs and optionally requeue pending ones",
		Long: "Marks processing jobs older than generation_timeout + stale_grace as error. " +
			"With --requeue, pending jobs are republished to the Redis stream for the job-worker.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			m, cleanup, err := wire.InitializeMaintenance(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			var dispatcher story.Dispatcher
			if requeue {
				if m.Stream == nil {
					return fmt.Errorf("--requeue needs cache.redis.enabled to publish to the job stream")
				}
				dispatcher = m.Stream
			}
			sweeper := story.NewSweeper(m.Jobs, dispatcher, &cfg.Story)

			expired, err := sweeper.ExpireStale(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d stale jobs\n", expired)

			if requeue {
				n, err := sweeper.RequeuePending(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "requeued %d pending jobs\n", n)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&requeue, "requeue", false, "republish pending jobs to the Redis stream")
	return cmd
}
