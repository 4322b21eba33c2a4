package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/yungbote/neurobridge-scorm/internal/platform/shutdown"
)

func main() {
	ctx, stop := shutdown.NotifyContext(context.Background())
	cc := newCommandContext()
	err := newRootCommand(cc).ExecuteContext(ctx)
	cc.close()
	stop()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
