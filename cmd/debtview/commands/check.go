package commands

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/spf13/cobra"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check connectivity to every configured dependency",
	Long: `Verifies the configuration and every dependency the server needs.

This command:
- loads the config and prints the effective sources
- pings Redis when REDIS_ENABLED=true
- runs a database health check when DATABASE_URL is set
- loads the reference master list
- with --feed, fetches the order book once

Example:
  go run ./cmd/debtview check
  go run ./cmd/debtview check --feed`,
	RunE: runCheck,
}

var checkFeed bool

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().BoolVar(&checkFeed, "feed", false, "also fetch the live order book")
}

func runCheck(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, log, err := loadConfig()
	if err != nil {
		return fmt.Errorf("❌ Failed to load config: %w", err)
	}
	printHeader(out, "debtview dependency check", [][2]string{
		{"Env", cfg.Env},
		{"Reference", cfg.Reference.Source},
		{"Feed", cfg.Feed.URL},
		{"Database", redactURL(cfg.Database.URL)},
		{"Redis", fmt.Sprintf("%s:%s (enabled=%v)", cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Enabled)},
	})

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	// newApp pings Redis and, for the postgres source, the database
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("❌ %w", err)
	}
	defer a.Close()
	if a.redis.Enabled() {
		printSuccess(out, "Redis ping successful")
	}

	if cfg.Database.URL != "" {
		if err := checkDatabase(ctx, out, a); err != nil {
			return err
		}
	}

	start := time.Now()
	table, err := a.provider().Refresh(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("❌ Reference load failed: %w", err)
	}
	printSuccess(out, fmt.Sprintf("Reference table: %d instruments, %d rejected, settlement %s (%v)",
		table.Len(), len(table.Rejected()), table.SettlementDate().Format("2006-01-02"), time.Since(start).Round(time.Millisecond)))

	if checkFeed {
		start = time.Now()
		levels, err := a.feedClient().Fetch(ctx)
		if err != nil {
			return fmt.Errorf("❌ Feed fetch failed: %w", err)
		}
		printSuccess(out, fmt.Sprintf("Order book: %d levels (%v)", len(levels), time.Since(start).Round(time.Millisecond)))
	}

	fmt.Fprintln(out, "\n✅ All checks passed!")
	return nil
}

func checkDatabase(ctx context.Context, out io.Writer, a *app) error {
	db, err := a.database(ctx)
	if err != nil {
		return fmt.Errorf("❌ %w", err)
	}

	status, err := db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("❌ Health check failed: %w", err)
	}
	printSuccess(out, fmt.Sprintf("Database healthy (%v)", status.ResponseTime.Round(time.Microsecond)))
	fmt.Fprintf(out, "   Max Connections: %d\n", status.Stats.MaxConns)
	fmt.Fprintf(out, "   Total Connections: %d\n", status.Stats.TotalConns)
	fmt.Fprintf(out, "   Idle Connections: %d\n", status.Stats.IdleConns)
	return nil
}

// redactURL hides the password of a connection URL for display
func redactURL(raw string) string {
	if raw == "" {
		return "(not set)"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "(unparseable)"
	}
	return u.Redacted()
}
