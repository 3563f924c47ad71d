package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"homeworkbot/internal/app"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.NewApp(app.Options{DotEnv: ".env"})
	if err != nil {
		// NewApp already logged the fault at critical level.
		os.Exit(1)
	}
	if err := a.Start(ctx); err != nil {
		os.Exit(1)
	}

	<-a.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx)
	if a.Err() != nil {
		os.Exit(1)
	}
}
