// Copyright (C) The Geoassign Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package geoassign

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"
)

// referenceFlags selects the reference data and engine.
type referenceFlags struct {
	dir        string
	species    string
	snps       int
	executable string
	iterations int
	thinning   int
	burnIn     int
	malformed  string
}

func (rf *referenceFlags) Flags(flags *flag.FlagSet) {
	defaultDir := os.Getenv("GEOASSIGN_REFERENCE_DIR")
	if defaultDir == "" {
		defaultDir = "reference"
	}
	defaultExe := os.Getenv("GEOASSIGN_SCAT")
	if defaultExe == "" {
		home, _ := os.UserHomeDir()
		defaultExe = filepath.Join(home, "support_repos", "scat", "src", "SCAT3")
	}
	flags.StringVar(&rf.dir, "reference-dir", defaultDir, "reference data `directory` (contains one subdirectory per species)")
	flags.StringVar(&rf.species, "species", "panthera_onca", "species `name`")
	flags.IntVar(&rf.snps, "snps", 84, "SNP panel `size`")
	flags.StringVar(&rf.executable, "scat", defaultExe, "SCAT executable `path`")
	flags.IntVar(&rf.iterations, "iterations", DefaultIterations, "MCMC iterations")
	flags.IntVar(&rf.thinning, "thinning", DefaultThinning, "MCMC thinning interval")
	flags.IntVar(&rf.burnIn, "burn-in", DefaultBurnIn, "MCMC burn-in iterations")
	flags.StringVar(&rf.malformed, "malformed", "missing", "treat malformed genotype calls as `missing` data or reject the input")
}

func (rf *referenceFlags) Pipeline() (*Pipeline, error) {
	policy, err := ParseMalformedPolicy(rf.malformed)
	if err != nil {
		return nil, err
	}
	return NewPipeline(LookupReference(rf.dir, rf.species, rf.snps, rf.executable),
		WithMalformedPolicy(policy),
		WithEngine(&SCAT{
			Executable: rf.executable,
			Iterations: rf.iterations,
			Thinning:   rf.thinning,
			BurnIn:     rf.burnIn,
		}))
}

type assigner struct {
	reference  referenceFlags
	batchArgs  batchArgs
	outputDir  string
	confidence float64
	region     bool
	jobs       int
}

func (cmd *assigner) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	cmd.reference.Flags(flags)
	cmd.batchArgs.Flags(flags)
	flags.StringVar(&cmd.outputDir, "o", "results", "output `directory` (one inference_* subdirectory per input)")
	flags.Float64Var(&cmd.confidence, "confidence", DefaultConfidence, "credible region confidence `level`")
	flags.BoolVar(&cmd.region, "credible-region", true, "write credible_region.json for each run")
	flags.IntVar(&cmd.jobs, "j", 1, "maximum concurrent runs")
	setLogLevel := logLevelFlag(flags)
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if flags.NArg() == 0 {
		flags.Usage()
		return 2
	}
	if err = setLogLevel(); err != nil {
		return 2
	}
	if err = cmd.batchArgs.Check(); err != nil {
		return 2
	}

	pipeline, err := cmd.reference.Pipeline()
	if err != nil {
		return exitCode(err)
	}

	inputs := cmd.batchArgs.Slice(flags.Args())
	log.Infof("assigning %d of %d inputs", len(inputs), flags.NArg())
	ctx := context.Background()
	thr := throttle{Max: cmd.jobs}
	var outmtx sync.Mutex
	seen := map[string]string{}
	for _, input := range inputs {
		input := input
		id, err := runID(input)
		if err != nil {
			fmt.Fprintf(stderr, "%s: %s\n", input, err)
			thr.Report(err)
			continue
		}
		if prev, dup := seen[id]; dup {
			log.Warnf("%s: same content as %s, skipping", input, prev)
			continue
		}
		seen[id] = input
		rundir := filepath.Join(cmd.outputDir, id)
		thr.Go(func() error {
			err := cmd.assignOne(ctx, pipeline, input, rundir)
			outmtx.Lock()
			defer outmtx.Unlock()
			if err != nil {
				fmt.Fprintf(stderr, "%s: %s\n", input, err)
				return err
			}
			fmt.Fprintln(stdout, rundir)
			return nil
		})
	}
	if werr := thr.Wait(); werr != nil {
		log.Errorf("%d of %d runs failed", thr.Failed(), len(inputs))
		return exitCode(werr)
	}
	return 0
}

// assignOne runs the pipeline for one input in rundir. Inputs with
// the same content share a run directory, so callers must not run them
// concurrently.
func (cmd *assigner) assignOne(ctx context.Context, pipeline *Pipeline, input, rundir string) error {
	a, err := pipeline.RunAssignment(ctx, input, filepath.Join(rundir, "results"))
	if err != nil {
		return err
	}
	if !cmd.region {
		return nil
	}
	if a.PosteriorFile == "" {
		log.Warnf("%s: no posterior sample file %q found for credible region computation", input, a.SampleID)
		return nil
	}
	region, err := CredibleRegionFromFile(a.PosteriorFile, cmd.confidence)
	if err != nil {
		log.Warnf("%s: failed to compute credible region: %s", input, err)
		return nil
	}
	log.Infof("%s: computed credible region with %d samples", input, region.NSamples)
	err = writeFile(filepath.Join(rundir, "credible_region.json"), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(region)
	})
	if err != nil {
		log.Warnf("%s: failed to save credible region: %s", input, err)
	}
	return nil
}

type convertcmd struct {
	reference referenceFlags
}

func (cmd *convertcmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	cmd.reference.Flags(flags)
	inputFilename := flags.String("i", "", "test specimen VCF `file`")
	outputDir := flags.String("o", ".", "output `directory`")
	setLogLevel := logLevelFlag(flags)
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if *inputFilename == "" {
		err = errors.New("cannot convert without -i argument")
		return 2
	}
	if err = setLogLevel(); err != nil {
		return 2
	}

	pipeline, err := cmd.reference.Pipeline()
	if err != nil {
		return exitCode(err)
	}
	merged, err := pipeline.Prepare(*inputFilename, *outputDir)
	if err != nil {
		return exitCode(err)
	}
	fmt.Fprintln(stdout, merged.GenotypeFile)
	fmt.Fprintln(stdout, merged.LocationFile)
	return 0
}
