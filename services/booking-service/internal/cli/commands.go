package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/navalha-app/navalha/services/booking-service/internal/availability"
	"github.com/navalha-app/navalha/services/booking-service/internal/booking"
)

type slotFlags struct {
	professional string
	service      string
	date         string
}

func (f *slotFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.professional, "professional", "p", "", "professional id")
	cmd.Flags().StringVarP(&f.service, "service", "s", "", "service id")
	cmd.Flags().StringVarP(&f.date, "date", "d", "today", "date: today, tomorrow or YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("professional")
}

func (a *App) slotRequest(f slotFlags, surface booking.Source) (booking.SlotRequest, error) {
	date, err := a.parseDate(f.date)
	if err != nil {
		return booking.SlotRequest{}, err
	}
	return booking.SlotRequest{
		ShopID:         a.shopID(),
		ProfessionalID: f.professional,
		ServiceID:      f.service,
		Date:           date,
		Surface:        surface,
	}, nil
}

func (a *App) slotsCmd() *cobra.Command {
	var f slotFlags
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "List free start times for a professional",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := a.slotRequest(f, booking.SourceAdminForm)
			if err != nil {
				return err
			}
			res, err := a.service.AvailableSlots(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorHeader.Fprintf(out, "%s  %s", res.Date, res.ProfessionalID)
			if res.ServiceID != "" {
				fmt.Fprintf(out, "  %s (%d min)", res.ServiceID, res.DurationMinutes)
			}
			fmt.Fprintln(out)
			if res.Mode == availability.ModeStartTimeOnly {
				colorWarn.Fprintln(out, "no service picked: only exact start times are excluded")
			}
			printTimes(out, res.Slots)
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}

func (a *App) suggestCmd() *cobra.Command {
	var (
		f     slotFlags
		at    string
		count int
	)
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Show the free times closest to a desired time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := a.slotRequest(f, booking.SourcePublic)
			if err != nil {
				return err
			}
			desired, err := availability.ParseLocalTime(at)
			if err != nil {
				return err
			}
			out, err := a.service.Suggest(cmd.Context(), booking.SuggestRequest{SlotRequest: req, Desired: desired, Count: count})
			if err != nil {
				return err
			}
			printTimes(cmd.OutOrStdout(), out)
			return nil
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVar(&at, "at", "", "desired time HH:MM")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "how many suggestions (default from the shop file)")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

type customerFlags struct {
	name  string
	email string
	phone string
}

func (f *customerFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "customer", "", "customer name")
	cmd.Flags().StringVar(&f.email, "email", "", "customer email")
	cmd.Flags().StringVar(&f.phone, "phone", "", "customer phone")
	_ = cmd.MarkFlagRequired("customer")
}

func (a *App) bookCmd() *cobra.Command {
	var (
		f      slotFlags
		c      customerFlags
		at     string
		source string
	)
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book a service with a professional",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			date, err := a.parseDate(f.date)
			if err != nil {
				return err
			}
			start, err := availability.ParseLocalTime(at)
			if err != nil {
				return err
			}
			appt, err := a.service.Book(cmd.Context(), booking.BookRequest{
				ShopID:         a.shopID(),
				ServiceID:      f.service,
				ProfessionalID: f.professional,
				Date:           date,
				StartTime:      start,
				CustomerName:   c.name,
				CustomerEmail:  c.email,
				CustomerPhone:  c.phone,
				Source:         booking.Source(source),
			})
			if err != nil {
				return explain(cmd.OutOrStdout(), err)
			}
			printBooked(cmd.OutOrStdout(), appt)
			return nil
		},
	}
	f.bind(cmd)
	c.bind(cmd)
	cmd.Flags().StringVar(&at, "at", "", "start time HH:MM")
	cmd.Flags().StringVar(&source, "source", string(booking.SourceAdminForm), "admin_form, quick_modal, public or assistant")
	_ = cmd.MarkFlagRequired("at")
	_ = cmd.MarkFlagRequired("service")
	return cmd
}

// intentCmd books by catalog names, the way the assistant does.
func (a *App) intentCmd() *cobra.Command {
	var (
		c            customerFlags
		service      string
		professional string
		date         string
		at           string
	)
	cmd := &cobra.Command{
		Use:   "intent",
		Short: "Book by service and professional name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := a.parseDate(date)
			if err != nil {
				return err
			}
			appt, err := a.service.BookFromIntent(cmd.Context(), booking.Intent{
				ShopID:           a.shopID(),
				ServiceName:      service,
				ProfessionalName: professional,
				Date:             d.String(),
				Time:             at,
				CustomerName:     c.name,
				CustomerEmail:    c.email,
				CustomerPhone:    c.phone,
			})
			if err != nil {
				return explain(cmd.OutOrStdout(), err)
			}
			printBooked(cmd.OutOrStdout(), appt)
			return nil
		},
	}
	c.bind(cmd)
	cmd.Flags().StringVar(&service, "service", "", "service name")
	cmd.Flags().StringVar(&professional, "professional", "", "professional name")
	cmd.Flags().StringVarP(&date, "date", "d", "today", "date: today, tomorrow or YYYY-MM-DD")
	cmd.Flags().StringVar(&at, "at", "", "start time HH:MM")
	for _, name := range []string{"service", "professional", "at"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (a *App) cancelCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "cancel <appointment-id>",
		Short: "Cancel a booking and free its time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appt, err := a.service.Cancel(cmd.Context(), a.shopID(), args[0], reason)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", appt.ID, appt.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "cancellation reason")
	return cmd
}

func (a *App) completeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <appointment-id>",
		Short: "Mark a booking as done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appt, err := a.service.Complete(cmd.Context(), a.shopID(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", appt.ID, appt.Status)
			return nil
		},
	}
}

func (a *App) listCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the shop's most recent bookings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appts, err := a.service.List(cmd.Context(), a.shopID(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(appts) == 0 {
				colorMuted.Fprintln(out, "no bookings")
				return nil
			}
			for _, appt := range appts {
				line := fmt.Sprintf("%s  %s %s-%s  %-10s %-12s %s  %s",
					appt.ID, appt.Date, appt.StartTime, appt.EndTime(),
					appt.Status, appt.ProfessionalID, appt.ServiceID, appt.CustomerName)
				if appt.Status.Occupying() {
					fmt.Fprintln(out, line)
				} else {
					colorMuted.Fprintln(out, line)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "max rows (default 50)")
	return cmd
}

func printTimes(w io.Writer, times []availability.LocalTime) {
	if len(times) == 0 {
		colorMuted.Fprintln(w, "none")
		return
	}
	parts := make([]string, len(times))
	for i, t := range times {
		parts[i] = t.String()
	}
	colorFree.Fprintln(w, strings.Join(parts, " "))
}

func printBooked(w io.Writer, appt booking.Appointment) {
	colorFree.Fprintf(w, "booked %s", appt.ID)
	fmt.Fprintf(w, "  %s %s-%s  %s\n", appt.Date, appt.StartTime, appt.EndTime(), appt.Status)
}
