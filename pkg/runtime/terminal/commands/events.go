package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/de-tools/compliance-engine/pkg/models/store"
	"github.com/de-tools/compliance-engine/pkg/runtime/terminal/export"
	"github.com/de-tools/compliance-engine/pkg/store/duckdb"
)

type EventsCmd struct {
	rule           string
	account        string
	complianceType string
	since          string
	limit          int
	open           Opener
	writer         *export.RecordWriter
}

func NewEventsCmd(open Opener, writer *export.RecordWriter) *cobra.Command {
	ec := &EventsCmd{open: open, writer: writer}
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Query compliance events recorded locally",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded compliance events",
		RunE:  ec.list,
	}
	stats := &cobra.Command{
		Use:   "stats",
		Short: "Count recorded compliance events",
		RunE:  ec.stats,
	}
	for _, c := range []*cobra.Command{list, stats} {
		c.Flags().StringVar(&ec.rule, "rule", "", "Filter by rule name")
		c.Flags().StringVar(&ec.account, "account", "", "Filter by account id")
		c.Flags().StringVar(&ec.complianceType, "compliance-type", "", "Filter by compliance type")
		c.Flags().StringVar(&ec.since, "since", "", "Only events recorded at or after this RFC 3339 time")
	}
	list.Flags().IntVar(&ec.limit, "limit", 100, "Maximum number of events")

	importCmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import stream records from a JSON lines file",
		Args:  cobra.ExactArgs(1),
		RunE:  ec.importRecords,
	}

	cmd.AddCommand(list, stats, importCmd)
	return cmd
}

func (ec *EventsCmd) filter() (store.RecordFilter, error) {
	filter := store.RecordFilter{
		RuleName:       ec.rule,
		AccountID:      ec.account,
		ComplianceType: ec.complianceType,
		Limit:          ec.limit,
	}
	if ec.since != "" {
		t, err := time.Parse(time.RFC3339, ec.since)
		if err != nil {
			return filter, fmt.Errorf("invalid --since: %w", err)
		}
		filter.Since = &t
	}
	return filter, nil
}

func (ec *EventsCmd) list(cmd *cobra.Command, _ []string) error {
	filter, err := ec.filter()
	if err != nil {
		return err
	}
	rt, err := ec.open(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	records, err := rt.Events.List(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}
	return ec.writer.Records(records)
}

func (ec *EventsCmd) stats(cmd *cobra.Command, _ []string) error {
	filter, err := ec.filter()
	if err != nil {
		return err
	}
	rt, err := ec.open(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	stats, err := rt.Events.Stats(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("failed to compute event stats: %w", err)
	}
	return ec.writer.Stats(stats)
}

// importRecords loads records previously captured from the stream. The whole
// file is imported in one transaction; records already present are skipped.
func (ec *EventsCmd) importRecords(cmd *cobra.Command, args []string) error {
	records, err := readRecords(args[0])
	if err != nil {
		return err
	}
	rt, err := ec.open(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	var inserted int
	add := func(ctx context.Context) error {
		n, err := rt.Events.Add(ctx, records)
		inserted = n
		return err
	}
	if rt.DB != nil {
		err = duckdb.InTransaction(cmd.Context(), rt.DB, add)
	} else {
		err = add(cmd.Context())
	}
	if err != nil {
		return fmt.Errorf("failed to import events: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d records\n", inserted, len(records))
	return nil
}

func readRecords(path string) ([]store.ComplianceRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var records []store.ComplianceRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var record store.ComplianceRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return records, nil
}
