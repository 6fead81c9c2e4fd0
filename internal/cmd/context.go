package cmd

import (
	"context"
	"io"

	"github.com/jimezsa/indeedhub/internal/config"
	"github.com/jimezsa/indeedhub/internal/ui"
	"github.com/rs/zerolog"
)

type Context struct {
	// Ctx is cancelled on interrupt; a running scrape stops and still closes its browser.
	Ctx        context.Context
	Out        io.Writer
	Err        io.Writer
	UI         *ui.UI
	Config     config.Config
	ConfigDir  string
	Logger     zerolog.Logger
	Verbose    bool
	JSONOutput bool
	PlainText  bool
	Version    string
	ColorMode  ui.ColorMode
}

func (c *Context) runContext() context.Context {
	if c == nil || c.Ctx == nil {
		return context.Background()
	}
	return c.Ctx
}
