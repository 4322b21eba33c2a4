package main

import (
	"os"
	"strings"
	"sync"

	"github.com/yungbote/neurobridge-scorm/internal/app"
)

// commandContext builds the application at most once, and only for
// commands that need the database.
type commandContext struct {
	envFile string

	appOnce sync.Once
	app     *app.App
	appErr  error
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

func (c *commandContext) applyEnvFile() {
	if path := strings.TrimSpace(c.envFile); path != "" {
		_ = os.Setenv("ENV_FILE", path)
	}
}

func (c *commandContext) ensureApp() (*app.App, error) {
	c.appOnce.Do(func() {
		c.applyEnvFile()
		c.app, c.appErr = app.New()
	})
	return c.app, c.appErr
}

func (c *commandContext) close() {
	if c.app != nil {
		c.app.Close()
	}
}
