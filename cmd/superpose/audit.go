package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"polaris-hq/superpose/pkg/audit"
	"polaris-hq/superpose/pkg/audit/export"
	auditstorage "polaris-hq/superpose/pkg/audit/storage"
	"polaris-hq/superpose/pkg/cli"
	"polaris-hq/superpose/pkg/config"
)

var auditFlags struct {
	policyID string
	reason   string
	observer string
	limit    int
	output   string
	format   string
	outFile  string
	header   bool
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect and export the audit trail",
	Long: `Inspect and export the append-only audit trail.

Reads the audit database configured in the configuration file. The server does
not need to be running.`,
}

var auditQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query audit records",
	Long: `Query audit records with optional filters, newest first.

Examples:
  # Last 20 records
  superpose audit query --limit 20

  # Everything recorded for one policy, as JSON
  superpose audit query --policy-id change-1042 --output json

  # All observation-triggered resolutions by one observer
  superpose audit query --reason observation --observer auditor-7`,
	RunE: runAuditQuery,
}

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export audit records",
	Long: `Export audit records as JSON Lines or CSV.

Examples:
  # Everything, one JSON object per line, to stdout
  superpose audit export

  # CSV with a header row to a file
  superpose audit export --format csv --out audit.csv`,
	RunE: runAuditExport,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditQueryCmd)
	auditCmd.AddCommand(auditExportCmd)

	for _, cmd := range []*cobra.Command{auditQueryCmd, auditExportCmd} {
		cmd.Flags().StringVar(&auditFlags.policyID, "policy-id", "", "filter by policy id")
		cmd.Flags().StringVar(&auditFlags.reason, "reason", "", "filter by resolution reason")
		cmd.Flags().StringVar(&auditFlags.observer, "observer", "", "filter by observer id")
	}
	auditQueryCmd.Flags().IntVar(&auditFlags.limit, "limit", 50, "maximum records to return (0 for all)")
	auditQueryCmd.Flags().StringVarP(&auditFlags.output, "output", "o", "text", "output format (text, json)")

	auditExportCmd.Flags().StringVar(&auditFlags.format, "format", "jsonl", "export format (jsonl, csv)")
	auditExportCmd.Flags().StringVar(&auditFlags.outFile, "out", "", "output file (default stdout)")
	auditExportCmd.Flags().BoolVar(&auditFlags.header, "header", true, "include a header row in csv output")
}

// openAuditStorage opens the audit database named by the configuration file.
func openAuditStorage() (audit.Storage, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Audit.Backend != "sqlite" {
		return nil, fmt.Errorf("audit backend %q has no offline database to read", cfg.Audit.Backend)
	}
	return auditstorage.NewSQLiteStorage(&auditstorage.SQLiteConfig{
		Path:        cfg.Audit.SQLite.Path,
		WALMode:     true,
		BusyTimeout: cfg.Audit.SQLite.BusyTimeout,
	})
}

func auditQuery(limit int) *audit.Query {
	return &audit.Query{
		PolicyID:         auditFlags.policyID,
		ResolutionReason: auditFlags.reason,
		ObserverID:       auditFlags.observer,
		Limit:            limit,
	}
}

func runAuditQuery(cmd *cobra.Command, args []string) error {
	storage, err := openAuditStorage()
	if err != nil {
		return cli.NewCommandError("audit query", err)
	}
	defer storage.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	records, err := storage.Query(ctx, auditQuery(auditFlags.limit))
	if err != nil {
		return cli.NewCommandError("audit query", err)
	}

	if cli.OutputFormat(auditFlags.output) == cli.FormatJSON {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, records)
	}

	if len(records) == 0 {
		fmt.Println("no audit records match")
		return nil
	}
	for _, r := range records {
		line := fmt.Sprintf("%s  %-20s %-9s %-18s λ=%.2f",
			r.Timestamp.UTC().Format(time.RFC3339),
			r.PolicyID,
			r.ResolvedState,
			r.ResolutionReason,
			r.UncertaintyLambdaAtTime,
		)
		if r.ObserverID != "" {
			line += "  observer=" + r.ObserverID
		}
		fmt.Println(line)
	}
	fmt.Printf("\n%d record(s)\n", len(records))
	return nil
}

func runAuditExport(cmd *cobra.Command, args []string) error {
	storage, err := openAuditStorage()
	if err != nil {
		return cli.NewCommandError("audit export", err)
	}
	defer storage.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	records, err := storage.Query(ctx, auditQuery(0))
	if err != nil {
		return cli.NewCommandError("audit export", err)
	}

	out := os.Stdout
	if auditFlags.outFile != "" {
		f, err := os.Create(auditFlags.outFile)
		if err != nil {
			return cli.NewCommandError("audit export", err)
		}
		defer f.Close()
		out = f
	}

	switch auditFlags.format {
	case "jsonl":
		err = export.NewJSONLExporter().Export(ctx, records, out)
	case "csv":
		err = export.NewCSVExporter(auditFlags.header).Export(ctx, records, out)
	default:
		return fmt.Errorf("unsupported export format: %s", auditFlags.format)
	}
	if err != nil {
		return cli.NewCommandError("audit export", err)
	}

	if auditFlags.outFile != "" {
		fmt.Printf("✓ Exported %d record(s) to %s\n", len(records), auditFlags.outFile)
	}
	return nil
}
