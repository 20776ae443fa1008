// Command ordersctl fetches orders through the stability patterns of the
// stability package and serves a scriptable orders endpoint to try them on.
//
// Usage:
//
//	ordersctl stub --mode errors --errors 4 --orders 2 &
//	ordersctl fetch --strategy retry
//	ordersctl fetch --strategy breaker --config ordersctl.toml --metrics-addr :9090
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
