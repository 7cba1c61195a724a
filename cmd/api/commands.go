package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"casedesk/api/internal/email"
	"casedesk/api/internal/listing"
	"casedesk/api/internal/reminder"
	"casedesk/api/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply every pending migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		db, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
			return err
		}
		logger.Info("migrations applied", zap.String("dir", cfg.MigrationsDir))
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		db, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer db.Close()
		version, err := store.RollbackLast(ctx, db, cfg.MigrationsDir)
		if err != nil {
			return err
		}
		if version == "" {
			logger.Info("nothing to roll back")
			return nil
		}
		logger.Info("migration rolled back", zap.String("version", version))
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List migrations and when they were applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		db, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer db.Close()
		states, err := store.MigrationStatus(ctx, db, cfg.MigrationsDir)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, state := range states {
			applied := "pending"
			if state.AppliedAt != nil {
				applied = listing.FormatDateTime(state.AppliedAt)
			}
			fmt.Fprintf(out, "%s\t%s\n", state.Version, applied)
		}
		return nil
	},
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the Meilisearch indexes from PostgreSQL",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		rt, err := buildRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()
		return rt.search.ReindexAllFromPG(ctx)
	},
}

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Send pending deadline reminder emails once",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		db, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer db.Close()
		mailer := email.NewService(email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		})
		job := reminder.New(store.NewPostgresStore(db), mailer, reminder.Config{
			Interval: cfg.ReminderInterval,
			Window:   cfg.ReminderWindow,
			AppURL:   cfg.AppURL,
		}, logger.Named("reminder"))
		sent, err := job.RunOnce(ctx)
		if err != nil {
			return err
		}
		logger.Info("deadline reminders sent", zap.Int("count", sent))
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
