package main

import (
	"context"
	"fmt"
	"os"

	"github.com/xaionaro-go/audiosync/pkg/progress"
)

// newProgressPrinter prints "[done/total] message" lines to stderr; the
// JSON mode keeps stderr quiet.
func newProgressPrinter(quiet bool) progress.Sink {
	if quiet {
		return progress.Nop
	}
	return progress.SinkFunc(func(_ context.Context, ev progress.Event) {
		fmt.Fprintf(os.Stderr, "%-6s %s\n", ev.Stage, ev)
	})
}
