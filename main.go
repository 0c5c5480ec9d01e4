package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"chromecontrol/internal/config"
	"chromecontrol/internal/dispatcher"
	cerrors "chromecontrol/internal/errors"
	"chromecontrol/internal/orchestrator"
	"chromecontrol/internal/profile"
	"chromecontrol/internal/rpc"
	"chromecontrol/internal/tools"
	"chromecontrol/internal/validation"
)

func main() {
	logger := cerrors.DefaultErrorLogger()

	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "%s\n", usageDoc)
			os.Exit(0)
		}
		logger.Fatal("chromecontrol: %v", err)
		os.Exit(1)
	}
	logger.SetVerbose(cfg.Verbose)

	if cfg.ShadowDir == "" {
		dir, err := os.MkdirTemp("", "chromecontrol-shadow-")
		if err != nil {
			logger.Fatal("chromecontrol: creating shadow profile dir: %v", err)
			os.Exit(1)
		}
		cfg.ShadowDir = dir
	}

	logf := func(format string, args ...interface{}) {
		if cfg.Verbose {
			logger.Info(format, args...)
		}
	}

	orch := orchestrator.New(cfg.Host, cfg.Port)
	dsp := dispatcher.New(func(ctx context.Context) error {
		_, err := orch.EnsureConnected(ctx)
		return err
	})

	reg := &tools.Registry{
		Orchestrator:   orch,
		Dispatcher:     dsp,
		Builder:        profile.NewBuilder(logf),
		BaseProfileDir: cfg.ProfileDir,
		ShadowDir:      cfg.ShadowDir,
		LaunchRequest:  cfg.SupervisorRequest(cfg.ShadowDir),
	}
	tools.RegisterAll(reg)
	dsp.SetAdvancedEnabled(cfg.AdvancedTools)

	server := rpc.New(os.Stdin, os.Stdout)
	dsp.OnVisibilityChange(func() {
		server.Notify("notifications/tools/list_changed", nil)
	})

	server.Register("initialized", func(params json.RawMessage) (interface{}, error) {
		return map[string]interface{}{"ok": true}, nil
	})

	server.Register("tools/list", func(params json.RawMessage) (interface{}, error) {
		return map[string]interface{}{"tools": dsp.List()}, nil
	})

	server.Register("tools/call", func(params json.RawMessage) (interface{}, error) {
		var req struct {
			Name      string                 `json:"name"`
			Arguments map[string]interface{} `json:"arguments"`
			TimeoutMs int                    `json:"timeout_ms"`
		}
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, &rpc.Error{Code: rpc.CodeInvalidParams, Message: err.Error()}
		}
		if req.TimeoutMs > 0 {
			if err := validation.ValidateTimeout(req.TimeoutMs / 1000); err != nil {
				return nil, &rpc.Error{Code: rpc.CodeInvalidParams, Message: "timeout_ms: " + err.Error()}
			}
		}
		result := dsp.Call(context.Background(), req.Name, req.Arguments, req.TimeoutMs)
		return result, nil
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("chromecontrol: signal received, disconnecting and exiting")
		orch.Disconnect()
		os.Exit(0)
	}()

	if err := server.Serve(); err != nil {
		logger.Fatal("chromecontrol: stdio loop exited: %v", err)
		os.Exit(1)
	}
}
