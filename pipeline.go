// Copyright (C) The Geoassign Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package geoassign

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	log "github.com/sirupsen/logrus"
)

// State is the lifecycle state of a pipeline run.
type State int

const (
	StateUninitialized State = iota
	StateValidated
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateValidated:
		return "validated"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Pipeline assigns test specimens against one validated reference
// file set. A Pipeline is never mutated after NewPipeline returns, so
// it can serve concurrent runs as long as each run uses its own
// output directory.
type Pipeline struct {
	ref       ReferenceFileSet
	engine    Engine
	parser    GenotypeParser
	reference *GenotypeSet
}

// PipelineOption customizes NewPipeline.
type PipelineOption func(*Pipeline)

// WithEngine replaces the default SCAT engine.
func WithEngine(engine Engine) PipelineOption {
	return func(p *Pipeline) { p.engine = engine }
}

// WithMalformedPolicy sets the policy applied to malformed genotype
// calls in both the reference and the test VCF.
func WithMalformedPolicy(policy MalformedPolicy) PipelineOption {
	return func(p *Pipeline) { p.parser.Malformed = policy }
}

// NewPipeline validates ref and parses the reference panel. It returns
// an error, and no pipeline, if any reference file is missing or
// unreadable.
func NewPipeline(ref ReferenceFileSet, opts ...PipelineOption) (*Pipeline, error) {
	if err := ref.Validate(); err != nil {
		return nil, asPipelineError(err)
	}
	ref, err := ref.absolute()
	if err != nil {
		return nil, errUnknown(err)
	}
	p := &Pipeline{ref: ref}
	for _, opt := range opts {
		opt(p)
	}
	if p.engine == nil {
		p.engine = NewSCAT(ref.Executable)
	}
	p.reference, err = p.parser.ParseFile(ref.TrainingVCF)
	if err != nil {
		return nil, asPipelineError(err)
	}
	log.WithFields(log.Fields{
		"species":   ref.Species,
		"snps":      ref.SNPs,
		"grid":      ref.Grid,
		"reference": ref.TrainingVCF,
		"state":     StateValidated,
	}).Info("initialized pipeline")
	return p, nil
}

// Reference returns the validated reference file set, with absolute
// paths.
func (p *Pipeline) Reference() ReferenceFileSet {
	return p.ref
}

// Assignment describes a completed run.
type Assignment struct {
	OutputDir string
	SampleID  string
	// Files lists the names of all files in OutputDir after the
	// engine finished.
	Files []string
	// PosteriorFile is the path of the engine's posterior-sample
	// artifact, or "" if the engine did not write one.
	PosteriorFile string
	State         State
}

// Run assigns the specimen in testVCF and returns the output
// directory, which holds the merged input files and the engine's
// results.
func (p *Pipeline) Run(ctx context.Context, testVCF, outputDir string) (string, error) {
	a, err := p.RunAssignment(ctx, testVCF, outputDir)
	if err != nil {
		return "", err
	}
	return a.OutputDir, nil
}

// RunAssignment is like Run, but also reports the test sample id and
// the files produced. Every returned error is an *Error.
func (p *Pipeline) RunAssignment(ctx context.Context, testVCF, outputDir string) (a *Assignment, err error) {
	logger := log.WithFields(log.Fields{"input": testVCF, "output": outputDir})
	logger.WithField("state", StateRunning).Info("pipeline run starting")
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			perr := asPipelineError(err)
			logger.WithFields(log.Fields{"state": StateFailed, "code": perr.Code}).Error(perr.Message)
			a, err = nil, perr
			return
		}
		a.State = StateCompleted
		logger.WithFields(log.Fields{"state": StateCompleted, "files": len(a.Files)}).Info("pipeline run finished")
	}()

	merged, err := p.Prepare(testVCF, outputDir)
	if err != nil {
		return nil, err
	}
	err = p.engine.Assign(ctx, AssignmentInput{
		Merged:    merged,
		GridFile:  p.ref.Grid,
		OutputDir: filepath.Dir(merged.GenotypeFile),
	})
	if err != nil {
		return nil, err
	}
	a = &Assignment{
		OutputDir: filepath.Dir(merged.GenotypeFile),
		SampleID:  merged.SampleID,
		State:     StateRunning,
	}
	a.Files, err = listFiles(a.OutputDir)
	if err != nil {
		return nil, err
	}
	for _, name := range a.Files {
		if name == a.SampleID {
			a.PosteriorFile = filepath.Join(a.OutputDir, name)
		}
	}
	return a, nil
}

// Prepare parses testVCF and writes the merged input set into
// outputDir, creating it if needed.
func (p *Pipeline) Prepare(testVCF, outputDir string) (*MergedInputSet, error) {
	if _, err := os.Stat(testVCF); err != nil {
		return nil, errFromOpen(testVCF, "test VCF", err)
	}
	outputDir, err := filepath.Abs(outputDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outputDir, 0777); err != nil {
		return nil, errFromOpen(outputDir, "output directory", err)
	}
	test, err := p.parser.ParseFile(testVCF)
	if err != nil {
		return nil, err
	}
	return Convert(test, p.reference, p.ref.TrainingLocation, outputDir)
}

func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errFromOpen(dir, "output directory", err)
	}
	var names []string
	for _, ent := range entries {
		if !ent.IsDir() {
			names = append(names, ent.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
