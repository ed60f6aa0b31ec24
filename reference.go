// Copyright (C) The Geoassign Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package geoassign

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ReferenceFileSet locates the reference data for one species and SNP
// panel, plus the engine executable.
type ReferenceFileSet struct {
	Species          string
	SNPs             int
	TrainingVCF      string
	TrainingLocation string
	Grid             string
	Executable       string
}

// LookupReference returns the reference file set stored under dir
// using the layout
//
//	<dir>/<species>/<species>.<snps>snps.vcf
//	<dir>/<species>/<species>_loc.txt
//	<dir>/<species>/<species>_grid.txt
//
// It does not check that the files exist.
func LookupReference(dir, species string, snps int, executable string) ReferenceFileSet {
	spdir := filepath.Join(dir, species)
	return ReferenceFileSet{
		Species:          species,
		SNPs:             snps,
		TrainingVCF:      filepath.Join(spdir, fmt.Sprintf("%s.%dsnps.vcf", species, snps)),
		TrainingLocation: filepath.Join(spdir, species+"_loc.txt"),
		Grid:             filepath.Join(spdir, species+"_grid.txt"),
		Executable:       executable,
	}
}

// Validate checks that every file in the set exists. All missing files
// are reported in a single CodeMissingFiles error.
func (ref ReferenceFileSet) Validate() error {
	var missing []string
	for _, path := range []string{ref.TrainingVCF, ref.TrainingLocation, ref.Grid, ref.Executable} {
		if path == "" {
			missing = append(missing, "(unset)")
			continue
		}
		_, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			missing = append(missing, path)
		} else if errors.Is(err, fs.ErrPermission) {
			return errPermission(path, err)
		} else if err != nil {
			return fmt.Errorf("%s: stat failed: %w", path, err)
		}
	}
	if len(missing) > 0 {
		e := errMissingFiles(fmt.Sprintf("Missing required reference files for %s (%d SNPs)", ref.Species, ref.SNPs), missing...)
		e.Suggestion = "install the reference data for this species/SNP panel and the SCAT executable"
		return e
	}
	return nil
}

// absolute returns a copy with every path made absolute, so the engine
// can be run with a different working directory.
func (ref ReferenceFileSet) absolute() (ReferenceFileSet, error) {
	for _, path := range []*string{&ref.TrainingVCF, &ref.TrainingLocation, &ref.Grid, &ref.Executable} {
		abs, err := filepath.Abs(*path)
		if err != nil {
			return ref, err
		}
		*path = abs
	}
	return ref, nil
}
