package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"emailai/internal/analytics"
	"emailai/internal/config"
	"emailai/internal/draft"
	"emailai/internal/model"
	"emailai/internal/repository"
	"emailai/internal/store"
	"emailai/internal/triage"
	pkgconfig "emailai/pkg/config"
)

func rootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "emailctl",
		Short:         "Manage the email triage store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.configDir, "config-dir", "config", "Directory containing base.yaml")
	f.StringVar(&opts.env, "env", pkgconfig.GetConfigEnv(), "Config environment (local, production, ...)")
	f.StringVar(&opts.driver, "driver", "", "Store driver override (postgres, sqlite)")
	f.StringVar(&opts.sqlitePath, "sqlite-path", "", "SQLite database path override")
	f.StringVar(&opts.actor, "actor", "", "User id the command acts as")
	f.StringVar(&opts.logLevel, "log-level", "", "Log level override")

	cmd.AddCommand(
		migrateCmd(opts),
		seedCmd(opts),
		listCmd(opts),
		updateCmd(opts),
		draftCmd(opts),
		statsCmd(opts),
	)
	return cmd
}

func migrateCmd(opts *options) *cobra.Command {
	var schema string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the store schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.Store.Driver == config.DriverSQLite {
				// NewSQLiteStore 已经迁移到最新版本
				fmt.Fprintln(cmd.OutOrStdout(), "sqlite schema up to date")
				return nil
			}

			sql, err := os.ReadFile(schema)
			if err != nil {
				return fmt.Errorf("read schema: %w", err)
			}
			if _, err := a.pool.Exec(ctx, string(sql)); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "postgres schema applied")
			return nil
		},
	}
	cmd.Flags().StringVar(&schema, "schema", "migrations/postgres.sql", "PostgreSQL schema file")
	return cmd
}

func seedCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the sample emails for --actor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			actor, err := requireActor(opts)
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			samples := store.SampleEmails()
			if err := a.store.Insert(cmd.Context(), actor, samples); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d emails for %s\n", len(samples), actor)
			return nil
		},
	}
}

func listCmd(opts *options) *cobra.Command {
	var (
		search    string
		sentiment string
		urgency   string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List emails, optionally filtered",
		RunE: func(cmd *cobra.Command, _ []string) error {
			actor, err := requireActor(opts)
			if err != nil {
				return err
			}
			criteria, err := triage.ParseCriteria(search, sentiment, urgency)
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			repo := repository.NewEmailRepository(a.store, a.log)
			emails, err := repo.Load(cmd.Context(), actor)
			if err != nil {
				return err
			}
			filtered := triage.Filter(emails, criteria)

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), filtered)
			}
			writeTable(cmd.OutOrStdout(), filtered)
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d emails\n", len(filtered), len(emails))
			return nil
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "Case-insensitive text in subject, sender name or content")
	cmd.Flags().StringVar(&sentiment, "sentiment", triage.All, "positive, neutral, negative or all")
	cmd.Flags().StringVar(&urgency, "urgency", triage.All, "low, medium, high, urgent or all")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func updateCmd(opts *options) *cobra.Command {
	var (
		status     string
		aiDraft    string
		clearDraft bool
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change the status or AI draft of an email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := requireActor(opts)
			if err != nil {
				return err
			}

			fields := map[string]any{}
			if cmd.Flags().Changed("status") {
				fields[model.FieldStatus] = status
			}
			if cmd.Flags().Changed("draft") {
				fields[model.FieldAIDraft] = aiDraft
			}
			if clearDraft {
				fields[model.FieldAIDraft] = nil
			}

			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			repo := repository.NewEmailRepository(a.store, a.log)
			updated, err := repo.Update(cmd.Context(), actor, args[0], fields)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), updated)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "unread, read, replied or archived")
	cmd.Flags().StringVar(&aiDraft, "draft", "", "AI draft text to store")
	cmd.Flags().BoolVar(&clearDraft, "clear-draft", false, "Remove the stored AI draft")
	cmd.MarkFlagsMutuallyExclusive("draft", "clear-draft")
	return cmd
}

func draftCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "draft <id>",
		Short: "Suggest a reply draft for an email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := requireActor(opts)
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			repo := repository.NewEmailRepository(a.store, a.log)
			if _, err := repo.Load(cmd.Context(), actor); err != nil {
				return err
			}
			email, ok := repo.Get(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", model.ErrNotFound, args[0])
			}

			drafter, err := draft.New(a.cfg.Draft, a.log)
			if err != nil {
				return err
			}
			text, source := drafter.Draft(cmd.Context(), email)
			fmt.Fprintf(cmd.OutOrStdout(), "[%s]\n%s\n", source, text)
			return nil
		},
	}
}

func statsCmd(opts *options) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print dashboard statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			actor, err := requireActor(opts)
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			repo := repository.NewEmailRepository(a.store, a.log)
			emails, err := repo.Load(cmd.Context(), actor)
			if err != nil {
				return err
			}
			stats := analytics.Summarize(emails)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), stats)
			}
			writeStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a summary")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTable(w io.Writer, emails []model.Email) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tRECEIVED\tFROM\tSUBJECT\tSENTIMENT\tURGENCY\tSTATUS")
	for _, e := range emails {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID,
			e.ReceivedAt.Format("2006-01-02 15:04"),
			e.Sender.Name,
			truncate(e.Subject, 48),
			e.Sentiment,
			e.Urgency,
			e.Status,
		)
	}
	_ = tw.Flush()
}

func writeStats(w io.Writer, stats model.EmailStats) {
	fmt.Fprintf(w, "total: %d  unread: %d  replied: %d  response rate: %.0f%%\n",
		stats.Total, stats.Unread, stats.Replied, analytics.ResponseRate(stats)*100)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, s := range model.Sentiments {
		fmt.Fprintf(tw, "sentiment\t%s\t%d\n", s, stats.SentimentBreakdown[s])
	}
	for _, u := range model.Urgencies {
		fmt.Fprintf(tw, "urgency\t%s\t%d\n", u, stats.UrgencyBreakdown[u])
	}
	for _, c := range model.Categories {
		fmt.Fprintf(tw, "category\t%s\t%d\n", c, stats.CategoryBreakdown[c])
	}
	for _, d := range stats.WeeklyVolume {
		fmt.Fprintf(tw, "weekday\t%s\t%d\t%d replied\n", d.Day, d.Emails, d.Replied)
	}
	_ = tw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n-1])) + "…"
}
