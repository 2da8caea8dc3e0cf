// Copyright 2026 The probevm Authors
// This file is part of probevm.
//
// probevm is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// probevm is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with probevm. If not, see <http://www.gnu.org/licenses/>.

// Command probevm runs a compiled bytecode container to completion. On
// a normal RETURN from the entry function the process exit status is
// the entry function's result when it lies in [0,255]; a result outside
// that range is printed to stdout and the process exits 0. A terminating
// runtime condition exits with one of the five stable trap exit codes.
//
// The command layout — a single urfave/cli.v1 App whose default action
// runs the container named by its one argument, with global flags for
// tracing and an optional TOML config file — is
// grounded in the teacher's own CLI driver (go-probe-master/cmd/probe's
// app.go), generalized from a long-running node daemon's many
// subcommands down to this interpreter's single batch operation.
package main

import (
	"fmt"
	"os"

	"github.com/naoina/toml"
	"gopkg.in/urfave/cli.v1"

	"github.com/probevm/probevm/heap"
	"github.com/probevm/probevm/image"
	"github.com/probevm/probevm/natives"
	"github.com/probevm/probevm/plog"
	"github.com/probevm/probevm/trap"
	"github.com/probevm/probevm/vm"
)

// fileConfig is the shape of the optional --config TOML file: settings
// a user would otherwise have to repeat on every invocation. Flags
// passed on the command line take precedence over the file.
type fileConfig struct {
	Trace     bool   `toml:"trace"`
	HeapLimit uint64 `toml:"heap_limit_bytes"`
	LogLevel  string `toml:"log_level"`
}

var logLevels = map[string]plog.Level{
	"debug": plog.LevelDebug,
	"info":  plog.LevelInfo,
	"warn":  plog.LevelWarn,
	"error": plog.LevelError,
}

func main() {
	app := cli.NewApp()
	app.Name = "probevm"
	app.Usage = "run a probevm bytecode container"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{Name: "trace", Usage: "log every dispatched instruction"},
		cli.StringFlag{Name: "config", Usage: "path to a TOML config file"},
		cli.StringFlag{Name: "log-level", Usage: "debug, info, warn, or error (default warn)"},
		cli.Uint64Flag{Name: "heap-limit", Usage: "heap arena limit in bytes (0 = default 16MiB)"},
	}
	app.Action = runAction

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "probevm:", err)
		os.Exit(int(trap.InvalidOpcode))
	}
}

func runAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.NewExitError("usage: probevm [flags] <container>", 2)
	}
	path := c.Args().Get(0)

	cfg, err := loadFileConfig(c.String("config"))
	if err != nil {
		return cli.NewExitError(err.Error(), 2)
	}

	trace := c.Bool("trace") || cfg.Trace
	logLevel := plog.LevelWarn
	if lvl, ok := logLevels[c.String("log-level")]; ok {
		logLevel = lvl
	} else if lvl, ok := logLevels[cfg.LogLevel]; ok {
		logLevel = lvl
	}
	if trace {
		// Instruction trace lines are Debug records.
		logLevel = plog.LevelDebug
	}
	heapLimit := c.Uint64("heap-limit")
	if heapLimit == 0 {
		heapLimit = cfg.HeapLimit
	}

	logger := plog.New(os.Stderr, logLevel)

	f, err := os.Open(path)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("open %s: %v", path, err), 2)
	}
	defer f.Close()

	img, err := image.Load(f)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("load %s: %v", path, err), 2)
	}

	h := heap.New(img.StringPool(), heapLimit)
	nt := natives.StandardLibrary(h)

	result, runErr := vm.Execute(img, h, nt, vm.Options{Trace: trace, Logger: logger})
	if runErr != nil {
		if t, ok := trap.As(runErr); ok {
			logger.Error("trap", "kind", t.Kind.String(), "detail", t.Error())
			return cli.NewExitError("", t.Kind.ExitCode())
		}
		return cli.NewExitError(runErr.Error(), 1)
	}

	logger.Info("program exited normally", "result", result)
	if result >= 0 && result <= 255 {
		return cli.NewExitError("", int(result))
	}
	if result != 0 {
		// Outside the POSIX exit-code range [0,255]: the process exit
		// status can't carry the literal value, so print it instead.
		fmt.Println(result)
	}
	return nil
}

func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()
	if err := toml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
