package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/Zyko0/go-sdl3/bin/binimg"
	"github.com/Zyko0/go-sdl3/bin/binsdl"
	"github.com/Zyko0/go-sdl3/bin/binttf"

	"github.com/YitingChang/eye-tracking/config"
	"github.com/YitingChang/eye-tracking/engine"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code so the deferred library unloads happen
// before exit.
func run(args []string) int {
	defer binsdl.Load().Unload()
	defer binimg.Load().Unload()
	defer binttf.Load().Unload()

	cfg := config.Default()
	if len(args) > 0 {
		loaded, err := config.Load(args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		cfg = loaded
	}
	cfg.LoadCache(config.CacheFile)
	logger := engine.NewLogger(os.Stderr, cfg.LogLevel)

	start, err := engine.RunGuiSetup(cfg, config.CacheFile, logger)
	if err != nil {
		logger.Error("setup failed", "err", err)
		return 1
	}
	if !start {
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := engine.Run(ctx, cfg, logger); err != nil {
		logger.Error("session failed", "err", err)
		return 1
	}
	return 0
}
