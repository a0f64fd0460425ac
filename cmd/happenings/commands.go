package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"happenings/internal/catalog"
	"happenings/internal/datekey"
	"happenings/internal/ics"
	"happenings/internal/model"
	"happenings/internal/recurrence"
	"happenings/internal/venue"
)

// eventFlags describes an event either by catalog id or by raw fields.
type eventFlags struct {
	id     string
	day    string
	rule   string
	date   string
	custom []string
}

func (f *eventFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.id, "event", "", "Catalog event id (other event flags are ignored)")
	cmd.Flags().StringVar(&f.day, "day", "", "Day of week, e.g. Monday")
	cmd.Flags().StringVar(&f.rule, "rule", "", `Recurrence rule, e.g. weekly, biweekly, "2nd/4th", custom or an RRULE`)
	cmd.Flags().StringVar(&f.date, "date", "", "Legacy event date (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&f.custom, "custom", nil, "Custom dates (YYYY-MM-DD, repeatable)")
}

// event returns the catalog row named by --event, or an event built from
// the raw flags.
func (f *eventFlags) event(ctx context.Context, catalogPath string) (model.Event, error) {
	if f.id == "" {
		return model.Event{
			ID:             "cli",
			DayOfWeek:      f.day,
			RecurrenceRule: f.rule,
			EventDate:      f.date,
			CustomDates:    f.custom,
		}, nil
	}
	snap, err := catalog.Load(ctx, catalogPath)
	if err != nil {
		return model.Event{}, err
	}
	ev, ok := snap.Event(f.id)
	if !ok {
		return model.Event{}, fmt.Errorf("event %q not found in %s", f.id, catalogPath)
	}
	return ev, nil
}

var (
	expandEvent eventFlags
	expandStart string
	expandEnd   string
)

var expandCmd = &cobra.Command{
	Use:   "expand",
	Short: "Print the occurrences of an event inside a date window",
	Example: `  happenings expand --day Tuesday --rule "2nd/4th" --start 2026-03-01 --end 2026-03-31
  happenings expand --event open-mic`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, loc, err := loadEnv()
		if err != nil {
			return err
		}
		ev, err := expandEvent.event(cmd.Context(), cfg.Catalog.Path)
		if err != nil {
			return err
		}

		start := datekey.Today(time.Now(), loc)
		if expandStart != "" {
			if start, err = datekey.Parse(expandStart); err != nil {
				return err
			}
		}
		end := start.AddDays(cfg.HorizonDays - 1)
		if expandEnd != "" {
			if end, err = datekey.Parse(expandEnd); err != nil {
				return err
			}
		}

		d, err := recurrence.InterpretRecurrence(ev)
		if err != nil {
			return err
		}
		occ, err := recurrence.ExpandDescriptor(d, model.Window{StartKey: start, EndKey: end}, recurrence.Options{Location: loc})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), struct {
			Label       string             `json:"label"`
			Occurrences []model.Occurrence `json:"occurrences"`
		}{recurrence.LabelFromRecurrence(d), occ})
	},
}

var labelEvent eventFlags

var labelCmd = &cobra.Command{
	Use:   "label",
	Short: "Print the human-readable schedule of an event",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadEnv()
		if err != nil {
			return err
		}
		ev, err := labelEvent.event(cmd.Context(), cfg.Catalog.Path)
		if err != nil {
			return err
		}
		d, err := recurrence.InterpretRecurrence(ev)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), recurrence.LabelFromRecurrence(d))
		return err
	},
}

var resolveIn venue.Input

var resolveCmd = &cobra.Command{
	Use:     "resolve",
	Short:   "Match a venue hint against the catalog",
	Example: `  happenings resolve --message "open mic at LTB on mondays"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadEnv()
		if err != nil {
			return err
		}
		snap, err := catalog.Load(cmd.Context(), cfg.Catalog.Path)
		if err != nil {
			return err
		}
		in := resolveIn
		in.Catalog = snap.Venues
		in.AliasOverrides = snap.Aliases
		return printJSON(cmd.OutOrStdout(), venue.ResolveVenue(in))
	},
}

var importICSCmd = &cobra.Command{
	Use:   "import-ics FILE",
	Short: "Convert an iCalendar file into catalog events (YAML)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, loc, err := loadEnv()
		if err != nil {
			return err
		}
		body, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		events, err := ics.ParseEvents(body, loc)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return errors.New("no usable VEVENTs found")
		}

		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(struct {
			Events []model.Event `yaml:"events"`
		}{events})
	},
}

func init() {
	expandEvent.register(expandCmd)
	expandCmd.Flags().StringVar(&expandStart, "start", "", "Window start (YYYY-MM-DD, default today)")
	expandCmd.Flags().StringVar(&expandEnd, "end", "", "Window end (YYYY-MM-DD, default start + horizon_days - 1)")

	labelEvent.register(labelCmd)

	f := resolveCmd.Flags()
	f.StringVar(&resolveIn.DraftVenueID, "id", "", "Draft venue id")
	f.StringVar(&resolveIn.DraftVenueName, "name", "", "Draft venue name")
	f.StringVar(&resolveIn.UserMessage, "message", "", "Free-text user message")
	f.StringVar(&resolveIn.DraftLocationMode, "location-mode", "", `Draft location mode ("online" with --online-url)`)
	f.StringVar(&resolveIn.DraftOnlineURL, "online-url", "", "Online meeting URL")
	f.BoolVar(&resolveIn.IsCustomLocation, "custom-location", false, "Keep the draft name as a custom location if unmatched")
}
