package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tOgg1/margin/internal/db"
	"github.com/tOgg1/margin/internal/models"
)

var (
	logTypes  []string
	logLimit  int
	logSince  time.Duration
	logFollow bool
	logAll    bool
)

func init() {
	rootCmd.AddCommand(logCmd)
	flags := logCmd.Flags()
	flags.StringSliceVar(&logTypes, "type", nil, "event types to show (repeatable)")
	flags.IntVarP(&logLimit, "limit", "n", 50, "maximum events to show")
	flags.DurationVar(&logSince, "since", 0, "only events newer than this, e.g. 1h")
	flags.BoolVarP(&logFollow, "follow", "F", false, "stream new events as JSON lines")
	flags.BoolVar(&logAll, "all", false, "events for every document")
}

var logCmd = &cobra.Command{
	Use:   "log [uri]",
	Short: "Show the annotation event log",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		uri := ""
		if !logAll {
			resolved, err := resolveURI(args)
			if err != nil {
				return err
			}
			uri = resolved
		}

		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()
		repo := db.NewEventRepository(database)

		types := make([]models.EventType, 0, len(logTypes))
		for _, t := range logTypes {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, models.EventType(t))
			}
		}
		var since *time.Time
		if logSince > 0 {
			ts := time.Now().UTC().Add(-logSince)
			since = &ts
		}

		if logFollow {
			cfg := DefaultStreamConfig()
			cfg.EventTypes = types
			cfg.URI = uri
			cfg.Since = since
			cfg.IncludeExisting = since != nil
			return NewEventStreamer(repo, cmd.OutOrStdout(), cfg).Stream(cmd.Context())
		}

		query := db.EventQuery{Since: since, Limit: logLimit}
		if uri != "" {
			query.URI = &uri
		}
		if len(types) == 1 {
			query.Type = &types[0]
		}
		page, err := repo.Query(cmd.Context(), query)
		if err != nil {
			return err
		}
		events := filterEventTypes(page.Events, types)

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(cmd.OutOrStdout(), events)
		}
		if len(events) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No events")
			return nil
		}
		rows := make([][]string, 0, len(events))
		for _, event := range events {
			rows = append(rows, []string{
				event.Timestamp.Local().Format("2006-01-02 15:04:05"),
				string(event.Type),
				event.AnnotationID,
				event.URI,
			})
		}
		return writeTable(cmd.OutOrStdout(), []string{"TIME", "TYPE", "ANNOTATION", "URI"}, rows)
	},
}

func filterEventTypes(events []*models.Event, types []models.EventType) []*models.Event {
	if len(types) <= 1 {
		return events
	}
	allowed := make(map[models.EventType]struct{}, len(types))
	for _, t := range types {
		allowed[t] = struct{}{}
	}
	out := make([]*models.Event, 0, len(events))
	for _, event := range events {
		if _, ok := allowed[event.Type]; ok {
			out = append(out, event)
		}
	}
	return out
}
