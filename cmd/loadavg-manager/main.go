// Command loadavg-manager suppresses the FMOS LoadAvgCheck health check
// around the nightly backup and restores it once the load has settled.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/types"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) (code int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\n%s\n", r, debug.Stack())
			code = types.ExitPanicError.Int()
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := newApp(os.Stdout, os.Stderr)
	defer a.close()
	return a.execute(ctx, args).Int()
}
