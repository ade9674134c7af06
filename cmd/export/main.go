// Command export renders the static small-multiple panels for every model,
// graph and resolution into an output directory.
//
// Usage:
//
//	go run ./cmd/export --output-dir figures \
//	  --model mlr_clades=data/clades.json \
//	  --graph freq --graph r_t --resolution medium
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newExportCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "export failed:", err)
		os.Exit(2)
	}
}
