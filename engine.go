// Copyright (C) The Geoassign Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package geoassign

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultIterations = 100
	DefaultThinning   = 100
	DefaultBurnIn     = 100
)

// AssignmentInput is everything an Engine needs for one run.
type AssignmentInput struct {
	Merged    *MergedInputSet
	GridFile  string
	OutputDir string
}

// Engine infers the location of the test specimen in a merged input
// set. Results are written to in.OutputDir.
type Engine interface {
	Assign(ctx context.Context, in AssignmentInput) error
}

// SCAT runs the SCAT executable as a subprocess.
type SCAT struct {
	Executable string
	Iterations int
	Thinning   int
	BurnIn     int
}

// NewSCAT returns a SCAT engine with default MCMC parameters.
func NewSCAT(executable string) *SCAT {
	return &SCAT{
		Executable: executable,
		Iterations: DefaultIterations,
		Thinning:   DefaultThinning,
		BurnIn:     DefaultBurnIn,
	}
}

// CommandLine returns the full argument list, including the
// executable.
func (e *SCAT) CommandLine(in AssignmentInput) []string {
	orDefault := func(v, def int) string {
		if v <= 0 {
			v = def
		}
		return strconv.Itoa(v)
	}
	return []string{
		e.Executable,
		"-A", "1", "1",
		"-g", in.GridFile,
		in.Merged.GenotypeFile,
		in.Merged.LocationFile,
		in.OutputDir,
		strconv.Itoa(in.Merged.Loci),
		orDefault(e.Iterations, DefaultIterations),
		orDefault(e.Thinning, DefaultThinning),
		orDefault(e.BurnIn, DefaultBurnIn),
	}
}

// Assign runs SCAT to completion in in.OutputDir. A non-zero exit
// status is returned as a CodeProcessFailure error carrying the
// command line, exit code and captured output. Failure to start the
// process at all is CodeUnknown.
func (e *SCAT) Assign(ctx context.Context, in AssignmentInput) error {
	args := e.CommandLine(in)
	log.Infof("running %s", strings.Join(args, " "))
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = in.OutputDir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	var exiterr *exec.ExitError
	if errors.As(err, &exiterr) {
		detail := &ProcessDetail{
			CommandLine: args,
			ExitCode:    exiterr.ExitCode(),
			Stdout:      stdout.String(),
			Stderr:      stderr.String(),
		}
		log.WithField("exit_code", detail.ExitCode).Errorf("SCAT failed:\n%s", detail)
		return errProcess(detail, err)
	} else if err != nil {
		// the process never ran, so there is no exit status or
		// output to report
		log.Errorf("SCAT could not be started: %s", err)
		return errUnknown(err)
	}
	log.Debugf("SCAT stdout:\n%s", stdout.String())
	if stderr.Len() > 0 {
		log.Debugf("SCAT stderr:\n%s", stderr.String())
	}
	log.Info("SCAT completed successfully")
	return nil
}
