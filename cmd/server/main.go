package main

import (
	"context"
	"fmt"
	"os"

	"github.com/yungbote/neurobridge-scorm/internal/app"
	"github.com/yungbote/neurobridge-scorm/internal/platform/shutdown"
)

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("failed to initialize app: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := shutdown.NotifyContext(context.Background())
	err = serve(ctx, a)
	stop()
	a.Close()
	if err != nil {
		fmt.Printf("server exited: %v\n", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, a *app.App) error {
	if err := a.Start(); err != nil {
		return err
	}
	return a.Run(ctx, ":"+a.Cfg.Port)
}
