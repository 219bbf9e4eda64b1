package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"git.home.luguber.info/inful/nightlybuilder/internal/eventstore"
	"git.home.luguber.info/inful/nightlybuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/nightlybuilder/internal/logfields"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int    `short:"n" help:"Number of runs to show" default:"20"`
	RunID string `name:"run" help:"Show a single run by id"`
	JSON  bool   `name:"json" help:"Print JSON instead of a table"`
}

func (h *HistoryCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if cfg.History.Path == "" {
		return errors.ConfigError("history.path is not configured").Build()
	}
	store, err := eventstore.NewSQLiteStore(cfg.History.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	hist := eventstore.NewRunHistory(store)
	ctx := context.Background()
	var records []*eventstore.RunRecord
	if h.RunID != "" {
		rec, err := hist.Get(ctx, h.RunID)
		if err != nil {
			return err
		}
		records = []*eventstore.RunRecord{rec}
	} else {
		records, err = hist.Recent(ctx, h.Limit)
		if err != nil {
			return err
		}
	}

	if h.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	return writeHistoryTable(os.Stdout, records)
}

func writeHistoryTable(out io.Writer, records []*eventstore.RunRecord) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tWORKFLOW\tDATE\tSTATUS\tDURATION\tTARGETS\tDELIVERED\tFAILED")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%d\n",
			r.RunID, r.Workflow, r.Date, r.Status, logfields.Pretty(r.Duration),
			formatTargets(r.Targets), r.Delivered, r.FailedDeliveries)
	}
	return tw.Flush()
}

func formatTargets(targets map[string]string) string {
	names := make([]string, 0, len(targets))
	for t := range targets {
		names = append(names, t)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, t := range names {
		parts = append(parts, t+"="+targets[t])
	}
	return strings.Join(parts, ",")
}
