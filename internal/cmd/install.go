package cmd

import (
	"github.com/jimezsa/indeedhub/internal/browser"
)

type InstallCmd struct{}

var installBrowser = browser.Install

func (i *InstallCmd) Run(ctx *Context) error {
	ctx.UI.Infof("Installing playwright driver and Chromium...")
	if err := installBrowser(); err != nil {
		return err
	}
	ctx.UI.Successf("Chromium installed.")
	return nil
}
