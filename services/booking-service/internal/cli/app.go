// Package cli is slotctl: a terminal front end to the booking core for a
// single shop described in a TOML file, backed by a local SQLite store.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/navalha-app/navalha/libs/config"
	"github.com/navalha-app/navalha/libs/runtime"
	"github.com/navalha-app/navalha/services/booking-service/internal/availability"
	"github.com/navalha-app/navalha/services/booking-service/internal/booking"
	"github.com/navalha-app/navalha/services/booking-service/internal/storage"
)

var (
	colorHeader = color.New(color.Bold)
	colorFree   = color.New(color.FgGreen)
	colorWarn   = color.New(color.FgYellow)
	colorMuted  = color.New(color.FgWhite, color.Faint)
)

// Options configure an App. Clock and Logger default to the system clock in
// the shop's offset and a warn-level JSON logger on stderr.
type Options struct {
	Clock  availability.Clock
	Logger *slog.Logger
}

type App struct {
	opts     Options
	root     *cobra.Command
	shopPath string
	noColor  bool

	file    *ShopFile
	store   *storage.SQLiteStore
	service *booking.Service
	loc     *time.Location
}

func NewApp(opts Options) *App {
	a := &App{opts: opts}
	a.root = &cobra.Command{
		Use:           "slotctl",
		Short:         "Check availability and manage bookings for one shop",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if a.noColor {
				color.NoColor = true
			}
			return a.open(cmd.Context())
		},
	}
	a.root.PersistentFlags().StringVar(&a.shopPath, "shop", config.String("SLOTCTL_SHOP", "shop.toml"), "shop file (TOML)")
	a.root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable colored output")

	a.root.AddCommand(a.slotsCmd())
	a.root.AddCommand(a.suggestCmd())
	a.root.AddCommand(a.bookCmd())
	a.root.AddCommand(a.intentCmd())
	a.root.AddCommand(a.cancelCmd())
	a.root.AddCommand(a.completeCmd())
	a.root.AddCommand(a.listCmd())
	return a
}

func (a *App) SetOutput(w io.Writer) {
	a.root.SetOut(w)
	a.root.SetErr(w)
}

func (a *App) SetArgs(args []string) {
	a.root.SetArgs(args)
}

func (a *App) Execute(ctx context.Context) error {
	return a.root.ExecuteContext(ctx)
}

// Close releases the store. Safe to call when nothing was opened.
func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	a.service = nil
	return err
}

func (a *App) open(ctx context.Context) error {
	if a.service != nil {
		return nil
	}
	f, err := LoadShopFile(a.shopPath)
	if err != nil {
		return err
	}
	store, err := storage.OpenSQLite(ctx, f.DBPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	clock := a.opts.Clock
	fixed := availability.NewFixedOffsetClock(f.Offset())
	if clock == nil {
		clock = fixed
	}
	logger := a.opts.Logger
	if logger == nil {
		logger = runtime.NewLoggerTo(os.Stderr, "slotctl", runtime.ParseLevel(config.String("LOG_LEVEL", "warn")))
	}

	a.file = f
	a.store = store
	a.loc = fixed.Location()
	a.service = booking.NewService(store, f.Catalog(), clock, logger, nil, booking.Config{Suggestions: f.Suggestions})
	return nil
}

func (a *App) shopID() string {
	return a.file.Shop.ID
}

// today is the calendar date in the shop's offset.
func (a *App) today() availability.CalendarDate {
	now := time.Now()
	if a.opts.Clock != nil {
		now = a.opts.Clock.Now()
	}
	return availability.DateOf(now.In(a.loc))
}

func (a *App) parseDate(raw string) (availability.CalendarDate, error) {
	if raw == "" || raw == "today" {
		return a.today(), nil
	}
	if raw == "tomorrow" {
		t := a.today()
		return availability.DateOf(time.Date(t.Year, t.Month, t.Day+1, 0, 0, 0, 0, time.UTC)), nil
	}
	return availability.ParseCalendarDate(raw)
}

// explain turns a conflict into something an operator can act on.
func explain(w io.Writer, err error) error {
	var cerr *booking.ConflictError
	if !errors.As(err, &cerr) {
		return err
	}
	colorWarn.Fprintf(w, "%s %s is not available (%s)\n", cerr.Date, cerr.StartTime, cerr.Stage)
	if len(cerr.Alternatives) == 0 {
		colorMuted.Fprintln(w, "no alternatives left on this day")
	} else {
		fmt.Fprint(w, "try: ")
		for i, t := range cerr.Alternatives {
			if i > 0 {
				fmt.Fprint(w, ", ")
			}
			colorFree.Fprint(w, t.String())
		}
		fmt.Fprintln(w)
	}
	return booking.ErrSlotTaken
}
