package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/txn2/live-search/pkg/audit"
	auditpostgres "github.com/txn2/live-search/pkg/audit/postgres"
)

const defaultRecentLimit = 20

// auditFlags are shared by the audit subcommands.
type auditFlags struct {
	dsn    string
	since  time.Duration
	limit  int
	asJSON bool
}

func (f *auditFlags) window() (start, end *time.Time) {
	if f.since <= 0 {
		return nil, nil
	}
	now := time.Now().UTC()
	from := now.Add(-f.since)
	return &from, &now
}

func newAuditCmd(opts *rootOptions) *cobra.Command {
	flags := &auditFlags{}

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the search audit trail",
	}
	cmd.PersistentFlags().StringVar(&flags.dsn, "dsn", "", "PostgreSQL connection string, overriding database.dsn")
	cmd.PersistentFlags().DurationVar(&flags.since, "since", 0, "Only include lookups from this far back (default: last 24h for aggregates)")
	cmd.PersistentFlags().IntVar(&flags.limit, "limit", defaultRecentLimit, "Maximum rows to print")
	cmd.PersistentFlags().BoolVar(&flags.asJSON, "json", false, "Print JSON instead of a table")

	cmd.AddCommand(newAuditRecentCmd(opts, flags))
	cmd.AddCommand(newAuditOverviewCmd(opts, flags))
	cmd.AddCommand(newAuditBreakdownCmd(opts, flags))
	return cmd
}

func newAuditRecentCmd(opts *rootOptions, flags *auditFlags) *cobra.Command {
	var sessionID, query string

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List recent provider lookups",
		Args:  cobra.NoArgs,
		RunE: dbCommand(opts, &flags.dsn, func(cmd *cobra.Command, db *sql.DB, _ []string) error {
			start, end := flags.window()
			events, err := auditpostgres.New(db, auditpostgres.Config{}).Query(cmd.Context(), audit.QueryFilter{
				StartTime: start,
				EndTime:   end,
				SessionID: sessionID,
				Query:     query,
				Limit:     flags.limit,
			})
			if err != nil {
				return err
			}
			if flags.asJSON {
				return writeJSON(cmd.OutOrStdout(), events)
			}
			return writeEvents(cmd.OutOrStdout(), events)
		}),
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Only lookups from this session")
	cmd.Flags().StringVar(&query, "query", "", "Only lookups for this query")
	return cmd
}

func newAuditOverviewCmd(opts *rootOptions, flags *auditFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "overview",
		Short: "Summarize provider lookups",
		Args:  cobra.NoArgs,
		RunE: dbCommand(opts, &flags.dsn, func(cmd *cobra.Command, db *sql.DB, _ []string) error {
			start, end := flags.window()
			ov, err := auditpostgres.New(db, auditpostgres.Config{}).Overview(cmd.Context(), start, end)
			if err != nil {
				return err
			}
			if flags.asJSON {
				return writeJSON(cmd.OutOrStdout(), ov)
			}
			return writeOverview(cmd.OutOrStdout(), ov)
		}),
	}
}

func newAuditBreakdownCmd(opts *rootOptions, flags *auditFlags) *cobra.Command {
	var by string

	cmd := &cobra.Command{
		Use:   "breakdown",
		Short: "Group provider lookups by a dimension",
		Args:  cobra.NoArgs,
		RunE: dbCommand(opts, &flags.dsn, func(cmd *cobra.Command, db *sql.DB, _ []string) error {
			start, end := flags.window()
			entries, err := auditpostgres.New(db, auditpostgres.Config{}).Breakdown(cmd.Context(), audit.BreakdownFilter{
				GroupBy:   audit.BreakdownDimension(by),
				Limit:     flags.limit,
				StartTime: start,
				EndTime:   end,
			})
			if err != nil {
				return err
			}
			if flags.asJSON {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			return writeBreakdown(cmd.OutOrStdout(), by, entries)
		}),
	}
	cmd.Flags().StringVar(&by, "by", string(audit.BreakdownByQuery), "Dimension: query, session_id, user_id, kind or error_kind")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeEvents(w io.Writer, events []audit.Event) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSESSION\tKIND\tQUERY\tRESULTS\tNEW\tCACHE\tMS\tERROR")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%t\t%d\t%s\n",
			e.Timestamp.Format(time.RFC3339), e.SessionID, e.Kind, e.Query,
			e.TotalResults, e.NewArticles, e.CacheHit, e.DurationMS, e.ErrorKind)
	}
	return tw.Flush()
}

func writeOverview(w io.Writer, ov *audit.Overview) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "searches\t%d\n", ov.TotalSearches)
	fmt.Fprintf(tw, "success rate\t%.1f%%\n", ov.SuccessRate*100)
	fmt.Fprintf(tw, "cache hit rate\t%.1f%%\n", ov.CacheHitRate*100)
	fmt.Fprintf(tw, "avg duration\t%.0fms\n", ov.AvgDurationMS)
	fmt.Fprintf(tw, "sessions\t%d\n", ov.UniqueSessions)
	fmt.Fprintf(tw, "queries\t%d\n", ov.UniqueQueries)
	fmt.Fprintf(tw, "new articles\t%d\n", ov.NewArticles)
	fmt.Fprintf(tw, "errors\t%d\n", ov.ErrorCount)
	return tw.Flush()
}

func writeBreakdown(w io.Writer, by string, entries []audit.BreakdownEntry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\tCOUNT\tSUCCESS\tAVG MS\n", by)
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%d\t%.1f%%\t%.0f\n", e.Dimension, e.Count, e.SuccessRate*100, e.AvgDurationMS)
	}
	return tw.Flush()
}
