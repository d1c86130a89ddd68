package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/navalha-app/navalha/libs/config"
	"github.com/navalha-app/navalha/libs/runtime"
	"github.com/navalha-app/navalha/services/booking-service/internal/booking"
	"github.com/navalha-app/navalha/services/booking-service/internal/cli"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ctx, stop := runtime.SignalContext()
	defer stop()

	app := cli.NewApp(cli.Options{})
	err := app.Execute(ctx)
	if cerr := app.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err == nil {
		return
	}
	// conflicts were already explained on stdout
	if !errors.Is(err, booking.ErrSlotTaken) {
		fmt.Fprintln(os.Stderr, "slotctl:", err)
	}
	os.Exit(1)
}
