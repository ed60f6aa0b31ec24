// Copyright (C) The Geoassign Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package geoassign

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	mergedGenotypeFile = "genotype_scat.txt"
	mergedLocationFile = "location_scat.txt"

	// unknownLocation is the engine's marker for the specimen whose
	// location is to be inferred.
	unknownLocation = -1
)

// MergedInputSet is the pair of files consumed by the assignment
// engine for one run.
type MergedInputSet struct {
	GenotypeFile string
	LocationFile string
	SampleID     string
	Loci         int
	References   int
}

// converter merges one test specimen with a reference panel.
type converter struct {
	test      *GenotypeSet
	reference *GenotypeSet
}

func (conv *converter) check() error {
	if len(conv.test.Samples) != 1 {
		return errInvalidInput(conv.test.Path, fmt.Sprintf("test VCF must contain exactly one sample, found %d", len(conv.test.Samples)))
	}
	if tl, rl := conv.test.LocusCount(), conv.reference.LocusCount(); tl != rl {
		e := errLocusMismatch(tl, rl)
		e.Path = conv.test.Path
		return e
	}
	return nil
}

// WriteGenotypes writes two haplotype rows per specimen: the test
// specimen first with the unknown-location index, then each reference
// sample with its 1-based position in the panel. A reference sample
// sharing the test id is left out, but keeps its position so the
// indices still match the location table.
func (conv *converter) WriteGenotypes(w io.Writer) error {
	bufw := bufio.NewWriter(w)
	writeRows := func(sample string, index int, calls []GenotypeCall) {
		for hap := 0; hap < 2; hap++ {
			bufw.WriteString(sample)
			bufw.WriteByte(' ')
			bufw.WriteString(strconv.Itoa(index))
			for _, call := range calls {
				bufw.WriteByte(' ')
				bufw.WriteString(strconv.Itoa(call[hap]))
			}
			bufw.WriteByte('\n')
		}
	}
	testID := conv.test.Samples[0]
	writeRows(testID, unknownLocation, conv.test.Genotypes[testID])
	for i, sample := range conv.reference.Samples {
		if sample == testID {
			log.Warnf("reference panel contains test sample id %q, omitting it from the reference rows", sample)
			continue
		}
		writeRows(sample, i+1, conv.reference.Genotypes[sample])
	}
	return bufw.Flush()
}

// WriteLocations copies the reference location table from r to w,
// skipping blank rows and any row belonging to the test specimen. It
// returns the number of rows written.
func (conv *converter) WriteLocations(w io.Writer, r io.Reader, name string) (int, error) {
	testID := conv.test.Samples[0]
	scanner := bufio.NewScanner(r)
	bufw := bufio.NewWriter(w)
	rows := 0
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 4 {
			return rows, errParse(name, fmt.Sprintf("line %d: expected id, index, latitude, longitude, got %d fields", lineNum, len(fields)))
		}
		for _, coord := range fields[2:4] {
			if _, err := strconv.ParseFloat(coord, 64); err != nil {
				return rows, errParse(name, fmt.Sprintf("line %d: invalid coordinate %q", lineNum, coord))
			}
		}
		if fields[0] == testID {
			log.Debugf("%s line %d: excluding test sample %s", name, lineNum, testID)
			continue
		}
		bufw.WriteString(line)
		bufw.WriteByte('\n')
		rows++
	}
	if err := scanner.Err(); err != nil {
		return rows, errParse(name, fmt.Sprintf("read failed after line %d: %s", lineNum, err))
	}
	return rows, bufw.Flush()
}

// Convert writes the merged genotype and location files for test and
// reference into outputDir. locationFile is the reference location
// table.
func Convert(test, reference *GenotypeSet, locationFile, outputDir string) (*MergedInputSet, error) {
	conv := &converter{test: test, reference: reference}
	if err := conv.check(); err != nil {
		return nil, err
	}
	merged := &MergedInputSet{
		GenotypeFile: filepath.Join(outputDir, mergedGenotypeFile),
		LocationFile: filepath.Join(outputDir, mergedLocationFile),
		SampleID:     test.Samples[0],
		Loci:         test.LocusCount(),
	}
	locf, err := os.Open(locationFile)
	if err != nil {
		return nil, errFromOpen(locationFile, "reference location file", err)
	}
	defer locf.Close()
	var locations bytes.Buffer
	merged.References, err = conv.WriteLocations(&locations, locf, locationFile)
	if err != nil {
		return nil, err
	}

	err = writeFile(merged.GenotypeFile, conv.WriteGenotypes)
	if err != nil {
		return nil, err
	}
	err = writeFile(merged.LocationFile, func(w io.Writer) error {
		_, err := locations.WriteTo(w)
		return err
	})
	if err != nil {
		return nil, err
	}
	panel := len(reference.Samples)
	if _, ok := reference.Genotypes[merged.SampleID]; ok {
		panel--
	}
	if merged.References != panel {
		log.Warnf("location table has %d reference rows, reference VCF has %d samples", merged.References, panel)
	}
	log.WithFields(log.Fields{
		"sample":     merged.SampleID,
		"loci":       merged.Loci,
		"references": merged.References,
		"genotypes":  merged.GenotypeFile,
		"locations":  merged.LocationFile,
	}).Info("wrote merged input files")
	return merged, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return errFromOpen(path, "output file", err)
	}
	err = write(f)
	if err != nil {
		f.Close()
		return err
	}
	err = f.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
