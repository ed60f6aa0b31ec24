// Copyright (C) The Geoassign Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package geoassign

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/kshedden/gonpy"
	log "github.com/sirupsen/logrus"
)

// exportNumpy writes posterior samples as an N×2 float64 array
// (latitude, longitude).
type exportNumpy struct{}

func (cmd *exportNumpy) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", "", "posterior sample `file` written by SCAT")
	outputFilename := flags.String("o", "-", "output `file`")
	setLogLevel := logLevelFlag(flags)
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if *inputFilename == "" {
		err = errors.New("cannot export without -i argument")
		return 2
	}
	if err = setLogLevel(); err != nil {
		return 2
	}

	samples, err := ReadPosteriorSamples(*inputFilename)
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
	err = writeSamplesNumpy(bufw, samples)
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
	log.Infof("wrote %d×2 array", len(samples))
	return 0
}

func writeSamplesNumpy(w io.Writer, samples []LatLng) error {
	npw, err := gonpy.NewWriter(nopCloser{w})
	if err != nil {
		return err
	}
	data := make([]float64, 0, len(samples)*2)
	for _, s := range samples {
		data = append(data, s[0], s[1])
	}
	npw.Shape = []int{len(samples), 2}
	return npw.WriteFloat64(data)
}
