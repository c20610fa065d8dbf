package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/cockroachdb/errors"

	"github.com/kcterala/kit/pkg/ui"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := NewKitCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		ui.Fail("%v", err)
		for _, hint := range errors.GetAllHints(err) {
			ui.Hint("hint: %s", hint)
		}
		os.Exit(1)
	}
}
