// Package export writes audit records to external formats: JSON Lines for
// machine ingestion and CSV for spreadsheets.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"polaris-hq/superpose/pkg/audit"
)

// JSONLExporter exports audit records as JSON Lines, one record per line.
type JSONLExporter struct{}

// NewJSONLExporter creates a JSON Lines exporter.
func NewJSONLExporter() *JSONLExporter {
	return &JSONLExporter{}
}

// Export writes each record as one JSON object per line.
func (e *JSONLExporter) Export(ctx context.Context, records []*audit.Record, w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := enc.Encode(record); err != nil {
			return fmt.Errorf("exporting audit record %s: %w", record.ID, err)
		}
	}
	return nil
}

// CSVExporter exports audit records to CSV.
type CSVExporter struct {
	// IncludeHeader includes a header row with column names.
	IncludeHeader bool
}

// NewCSVExporter creates a CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

// Export writes audit records as CSV rows.
func (e *CSVExporter) Export(ctx context.Context, records []*audit.Record, w io.Writer) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if e.IncludeHeader {
		if err := writer.Write(csvHeader()); err != nil {
			return fmt.Errorf("writing csv header: %w", err)
		}
	}

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writer.Write(recordToRow(record)); err != nil {
			return fmt.Errorf("exporting audit record %s: %w", record.ID, err)
		}
	}
	return writer.Error()
}

// csvHeader returns the column names in row order.
func csvHeader() []string {
	return []string{
		"id", "policy_id", "entanglement_tag", "resolution_reason",
		"resolved_state", "observer_id", "observer_reason", "timestamp",
		"baseline_key_id", "trade_off_constant", "uncertainty_lambda_at_time",
		"downstream_verdict", "downstream_warning",
	}
}

// recordToRow flattens one record into CSV columns.
func recordToRow(record *audit.Record) []string {
	return []string{
		record.ID,
		record.PolicyID,
		record.EntanglementTag,
		record.ResolutionReason,
		record.ResolvedState,
		record.ObserverID,
		record.ObserverReason,
		record.Timestamp.UTC().Format(time.RFC3339Nano),
		record.BaselineKeyID,
		strconv.FormatFloat(record.TradeOffConstant, 'g', -1, 64),
		strconv.FormatFloat(record.UncertaintyLambdaAtTime, 'g', -1, 64),
		record.DownstreamVerdict,
		strconv.FormatBool(record.DownstreamWarning),
	}
}
