package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/example/resource-scheduler/internal/availability"
	"github.com/example/resource-scheduler/internal/timeslot"
)

func newCalendarCommand(c *cli) *cobra.Command {
	var (
		resources []string
		from, to  string
		output    string
	)

	cmd := &cobra.Command{
		Use:   "calendar --resource id --from RFC3339 --to RFC3339",
		Short: "Print who holds which part of the resources' time",
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.UsesMemoryStorage() {
				return errMemoryStorage
			}
			if len(resources) == 0 {
				return errors.New("at least one --resource is required")
			}
			within, err := parseWindow(from, to)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ids := make([]availability.ResourceID, 0, len(resources))
			for _, r := range resources {
				ids = append(ids, availability.ResourceID(r))
			}
			calendars, err := a.availability.LoadCalendars(ctx, ids, within)
			if err != nil {
				return err
			}
			if output == "json" {
				return writeJSON(c.out, calendarViews(ids, calendars))
			}
			c.renderCalendars(ids, calendars)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&resources, "resource", "r", nil, "resource id, repeatable")
	cmd.Flags().StringVar(&from, "from", "", "window start (RFC 3339)")
	cmd.Flags().StringVar(&to, "to", "", "window end (RFC 3339)")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "table or json")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func parseWindow(from, to string) (timeslot.TimeSlot, error) {
	start, err := time.Parse(time.RFC3339, from)
	if err != nil {
		return timeslot.TimeSlot{}, fmt.Errorf("invalid --from: %w", err)
	}
	end, err := time.Parse(time.RFC3339, to)
	if err != nil {
		return timeslot.TimeSlot{}, fmt.Errorf("invalid --to: %w", err)
	}
	return timeslot.New(start.UTC(), end.UTC())
}

const freeLabel = "(free)"

func (c *cli) renderCalendars(ids []availability.ResourceID, calendars availability.Calendars) {
	tw := table.NewWriter()
	tw.SetOutputMirror(c.out)
	tw.AppendHeader(table.Row{"Resource", "Owner", "From", "To"})
	for _, id := range ids {
		for _, e := range calendarEntries(calendars.Get(id)) {
			tw.AppendRow(table.Row{id, e.Owner, e.From.Format(time.RFC3339), e.To.Format(time.RFC3339)})
		}
		tw.AppendSeparator()
	}
	tw.Render()
}

type calendarEntry struct {
	Owner string    `json:"owner"`
	From  time.Time `json:"from"`
	To    time.Time `json:"to"`
}

type calendarView struct {
	ResourceID string          `json:"resource_id"`
	Entries    []calendarEntry `json:"entries"`
}

func calendarEntries(cal availability.Calendar) []calendarEntry {
	var entries []calendarEntry
	for _, s := range cal.AvailableSlots() {
		entries = append(entries, calendarEntry{Owner: freeLabel, From: s.From, To: s.To})
	}
	for _, owner := range cal.Owners() {
		for _, s := range cal.TakenBy(owner) {
			entries = append(entries, calendarEntry{Owner: string(owner), From: s.From, To: s.To})
		}
	}
	return entries
}

func calendarViews(ids []availability.ResourceID, calendars availability.Calendars) []calendarView {
	views := make([]calendarView, 0, len(ids))
	for _, id := range ids {
		views = append(views, calendarView{ResourceID: string(id), Entries: calendarEntries(calendars.Get(id))})
	}
	return views
}
