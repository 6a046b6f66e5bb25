// Command remind is the Contest Tracker operator CLI.
//
// Usage:
//
//	contest-remind sweep --dry-run
//	contest-remind users add --username tourist --email t@example.com
//	contest-remind reminders set <user-id> --contest 51234 --platform codeforces --minutes 30
//	contest-remind reminders list <user-id>
//	contest-remind reminders delete <user-id> 51234
//	contest-remind records purge --older-than 720h
//	contest-remind contests list --days 3
//	contest-remind migrate
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pacemakerx/contest-tracker/internal/app"
	"github.com/pacemakerx/contest-tracker/internal/clist"
	"github.com/pacemakerx/contest-tracker/internal/config"
	"github.com/pacemakerx/contest-tracker/internal/db"
	"github.com/pacemakerx/contest-tracker/internal/maintenance"
	"github.com/pacemakerx/contest-tracker/internal/reminder"
	"github.com/pacemakerx/contest-tracker/internal/sweep"
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:          "contest-remind",
		Short:        "Contest Tracker reminder CLI",
		SilenceUsage: true,
	}

	root.AddCommand(sweepCmd())
	root.AddCommand(usersCmd())
	root.AddCommand(remindersCmd())
	root.AddCommand(recordsCmd())
	root.AddCommand(contestsCmd())
	root.AddCommand(migrateCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// sweep command
// --------------------------------------------------------------------------

func sweepCmd() *cobra.Command {
	var (
		dryRun bool
		at     string
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one reminder sweep now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, cfg *config.Config, st *app.Stores) error {
				now := time.Now()
				if at != "" {
					t, err := time.Parse(time.RFC3339, at)
					if err != nil {
						return fmt.Errorf("--at: %w", err)
					}
					now = t
				}

				d, err := app.NewDispatcher(cfg, dryRun, logger)
				if err != nil {
					return err
				}
				var opts []sweep.Option
				if dryRun {
					opts = append(opts, sweep.WithDryRun())
				}
				s := app.NewSweeper(cfg, st.Store, app.NewFeed(cfg, logger), d, logger, opts...)

				result, err := s.RunAt(ctx, now)
				if err != nil {
					return err
				}
				logger.Info("Sweep finished", "run_id", result.RunID, "dry_run", dryRun, "summary", result.Summary())
				for _, e := range result.Errors {
					logger.Error("sweep error", "error", e)
				}
				if result.FeedError != "" {
					logger.Warn("Contest feed unavailable", "error", result.FeedError)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log reminders that are due instead of sending them; no records are written")
	cmd.Flags().StringVar(&at, "at", "", "Evaluate as of this RFC 3339 instant instead of now")
	return cmd
}

// --------------------------------------------------------------------------
// users command
// --------------------------------------------------------------------------

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage users",
	}

	var u reminder.User
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a user, or update the one with the same username",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, cfg *config.Config, st *app.Stores) error {
				saved, err := st.UpsertUser(ctx, u)
				if err != nil {
					return err
				}
				fmt.Println(saved.ID)
				return nil
			})
		},
	}
	add.Flags().StringVar(&u.Username, "username", "", "Username (required)")
	add.Flags().StringVar(&u.Email, "email", "", "Email address")
	add.Flags().StringVar(&u.Phone, "phone", "", "Phone number in E.164 form")
	_ = add.MarkFlagRequired("username")

	get := &cobra.Command{
		Use:   "get <user-id>",
		Short: "Show a user and their reminders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, cfg *config.Config, st *app.Stores) error {
				user, err := st.GetUser(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Printf("%s  %s  email=%s  phone=%s\n", user.ID, user.Username, user.Email, user.Phone)
				printReminders(user.Reminders)
				return nil
			})
		},
	}

	cmd.AddCommand(add, get)
	return cmd
}

// --------------------------------------------------------------------------
// reminders command
// --------------------------------------------------------------------------

func remindersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Manage reminder preferences",
	}

	list := &cobra.Command{
		Use:   "list <user-id>",
		Short: "List a user's reminders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, cfg *config.Config, st *app.Stores) error {
				prefs, err := st.ListReminders(ctx, args[0])
				if err != nil {
					return err
				}
				printReminders(prefs)
				return nil
			})
		},
	}

	var (
		contestID int64
		platform  string
		method    string
		minutes   int
		start     string
	)
	set := &cobra.Command{
		Use:   "set <user-id>",
		Short: "Set the reminder for one contest (replaces any existing one)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := reminder.ParsePlatform(platform)
			if err != nil {
				return err
			}
			m, err := reminder.ParseMethod(method)
			if err != nil {
				return err
			}
			pref := reminder.Preference{ContestID: contestID, Platform: p, Method: m, TimeBeforeMinutes: minutes}
			if start != "" {
				t, err := time.Parse(time.RFC3339, start)
				if err != nil {
					return fmt.Errorf("--start: %w", err)
				}
				pref.ContestStart = &t
			}
			return withStore(func(ctx context.Context, cfg *config.Config, st *app.Stores) error {
				saved, err := st.UpsertReminder(ctx, args[0], pref)
				if err != nil {
					return err
				}
				printReminders([]reminder.Preference{saved})
				return nil
			})
		},
	}
	set.Flags().Int64Var(&contestID, "contest", 0, "clist contest id (required)")
	set.Flags().StringVar(&platform, "platform", "", "Codeforces, CodeChef or Leetcode (required)")
	set.Flags().StringVar(&method, "method", "email", "email or sms")
	set.Flags().IntVar(&minutes, "minutes", reminder.DefaultTimeBefore, "Minutes before start to send the reminder")
	set.Flags().StringVar(&start, "start", "", "Contest start (RFC 3339); omit to resolve from the feed")
	_ = set.MarkFlagRequired("contest")
	_ = set.MarkFlagRequired("platform")

	del := &cobra.Command{
		Use:   "delete <user-id> <contest-id>",
		Short: "Delete the reminder for one contest",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("contest id: %w", err)
			}
			return withStore(func(ctx context.Context, cfg *config.Config, st *app.Stores) error {
				return st.DeleteReminder(ctx, args[0], id)
			})
		},
	}

	cmd.AddCommand(list, set, del)
	return cmd
}

func printReminders(prefs []reminder.Preference) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CONTEST\tPLATFORM\tMETHOD\tMINUTES\tSTART")
	for _, p := range prefs {
		start := "(feed)"
		if p.ContestStart != nil {
			start = p.ContestStart.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", p.ContestID, p.Platform, p.Method, p.TimeBeforeMinutes, start)
	}
	w.Flush()
}

// --------------------------------------------------------------------------
// records command
// --------------------------------------------------------------------------

func recordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Manage notification records",
	}

	var olderThan time.Duration
	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete records and stored-start reminders for contests that started before the cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, cfg *config.Config, st *app.Stores) error {
				if olderThan <= 0 {
					olderThan = cfg.RecordRetention
				}
				cutoff := time.Now().Add(-olderThan)
				res := maintenance.Cleanup(ctx, st.Store, cutoff, logger)
				logger.Info("Purge finished", "before", cutoff, "records", res.Records, "reminders", res.Reminders)
				return nil
			})
		},
	}
	purge.Flags().DurationVar(&olderThan, "older-than", 0, "Retention period (default RECORD_RETENTION)")

	cmd.AddCommand(purge)
	return cmd
}

// --------------------------------------------------------------------------
// contests command
// --------------------------------------------------------------------------

func contestsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contests",
		Short: "Query the contest feed",
	}

	var days int
	list := &cobra.Command{
		Use:   "list",
		Short: "List upcoming contests on the supported platforms",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			feed := app.NewFeed(cfg, logger)
			if feed == nil {
				return fmt.Errorf("CLIST_API_KEY is required")
			}

			now := time.Now().UTC()
			contests, err := feed.FetchContests(ctx, clist.Range{From: now, To: now.Add(time.Duration(days) * 24 * time.Hour)})
			if err != nil {
				return err
			}

			loc := cfg.DisplayLocation()
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPLATFORM\tSTART\tEVENT")
			for _, c := range contests {
				p, _ := c.Platform()
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", c.ID, p, c.Start.In(loc).Format("Mon 02 Jan 15:04 MST"), c.Event)
			}
			return w.Flush()
		},
	}
	list.Flags().IntVar(&days, "days", 7, "How many days ahead to list")

	cmd.AddCommand(list)
	return cmd
}

// --------------------------------------------------------------------------
// migrate command
// --------------------------------------------------------------------------

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.UseMemoryStore() {
				return fmt.Errorf("DATABASE_URL is required")
			}
			applied, err := db.Migrate(ctx, cfg.DatabaseURL, logger)
			if err != nil {
				return err
			}
			logger.Info("Migrations complete", "applied", applied)
			return nil
		},
	}
}

// withStore loads config, opens the store and runs fn. The memory store is
// only useful for sweep dry runs since nothing persists between invocations.
func withStore(fn func(ctx context.Context, cfg *config.Config, st *app.Stores) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	return fn(ctx, cfg, st)
}
