// Copyright (C) The Geoassign Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package geoassign

import (
	"flag"
	"io"
	"os"

	"git.arvados.org/arvados.git/lib/cmd"
	"github.com/mattn/go-isatty"
	log "github.com/sirupsen/logrus"
)

var (
	handler = cmd.Multi(map[string]cmd.Handler{
		"version":   cmd.Version,
		"-version":  cmd.Version,
		"--version": cmd.Version,

		"assign":          &assigner{},
		"convert":         &convertcmd{},
		"credible-region": &credibleRegion{},
		"posterior-numpy": &exportNumpy{},
		"plot-region":     &plotRegion{},
	})
)

func Main() {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		log.StandardLogger().Formatter = &log.TextFormatter{DisableTimestamp: true}
	}
	os.Exit(handler.RunCommand(os.Args[0], os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// logLevelFlag adds the -loglevel flag, and returns a func that
// applies it after flags are parsed.
func logLevelFlag(flags *flag.FlagSet) func() error {
	loglevel := flags.String("loglevel", "info", "logging threshold (trace, debug, info, warn, error, fatal, or panic)")
	return func() error {
		lvl, err := log.ParseLevel(*loglevel)
		if err != nil {
			return err
		}
		log.SetLevel(lvl)
		return nil
	}
}

// exitCode maps a pipeline error to the process exit status.
func exitCode(err error) int {
	switch CodeOf(err) {
	case CodeMissingFiles:
		return 3
	case CodeInvalidInput, CodeParseFailure:
		return 4
	case CodeLocusMismatch:
		return 5
	case CodeProcessFailure:
		return 6
	case CodePermissionDenied:
		return 7
	default:
		return 1
	}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
