// Copyright (C) The Geoassign Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package geoassign

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
)

type credibleRegion struct{}

func (cmd *credibleRegion) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", "", "posterior sample `file` written by SCAT")
	outputFilename := flags.String("o", "-", "output `file` (JSON)")
	confidence := flags.Float64("confidence", DefaultConfidence, "confidence `level` in (0,1)")
	setLogLevel := logLevelFlag(flags)
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if *inputFilename == "" {
		err = errors.New("cannot compute credible region without -i argument")
		return 2
	}
	if err = setLogLevel(); err != nil {
		return 2
	}

	region, err := CredibleRegionFromFile(*inputFilename, *confidence)
	if err != nil {
		return exitCode(err)
	}

	var output io.WriteCloser
	if *outputFilename == "-" {
		output = nopCloser{stdout}
	} else {
		output, err = os.OpenFile(*outputFilename, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
		if err != nil {
			return 1
		}
		defer output.Close()
	}
	bufw := bufio.NewWriter(output)
	enc := json.NewEncoder(bufw)
	enc.SetIndent("", "  ")
	err = enc.Encode(region)
	if err != nil {
		return 1
	}
	err = bufw.Flush()
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}
	return 0
}
