/*
The testbed application: draws a small split-screen scene through the
render core to exercise every draw path.
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/xrender/engine"
	"github.com/spaghettifunk/xrender/engine/core"
	"github.com/spaghettifunk/xrender/testbed"
)

func main() {
	configPath := flag.String("config", "xrender.toml", "path to the TOML configuration")
	flag.Parse()

	tb, err := testbed.NewTestGame(*configPath)
	if err != nil {
		core.LogFatal(err.Error())
	}

	e, err := engine.New(tb.Game)
	if err != nil {
		core.LogFatal(err.Error())
	}

	if err := e.Initialize(); err != nil {
		core.LogFatal(err.Error())
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	go func() {
		<-sigCh
		e.Stop()
	}()

	runErr := e.Run()
	if err := e.Shutdown(); err != nil {
		core.LogError("shutdown failed: %s", err.Error())
	}
	if runErr != nil {
		core.LogFatal(runErr.Error())
	}
}
