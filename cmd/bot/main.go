package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"zhatMod/internal/app/runtime"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := runtime.Start(ctx, runtime.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "zhatmod: %v\n", err)
		os.Exit(1)
	}

	<-ctx.Done()

	if err := rt.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "zhatmod: apagando: %v\n", err)
		os.Exit(1)
	}
}
