// Copyright (C) The Geoassign Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package geoassign

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/klauspost/pgzip"
	log "github.com/sirupsen/logrus"
)

// MissingAllele is the allele code used for missing or unreadable
// calls.
const MissingAllele = -9

// vcfFixedColumns is the number of metadata columns preceding the
// per-sample columns in a VCF line.
const vcfFixedColumns = 9

// GenotypeCall is a diploid call using 1-based allele codes (1 =
// reference, 2 = alternate), or MissingAllele in both positions.
type GenotypeCall [2]int

var missingCall = GenotypeCall{MissingAllele, MissingAllele}

// Missing reports whether the call carries no genotype data.
func (gc GenotypeCall) Missing() bool {
	return gc[0] == MissingAllele
}

// Locus is the metadata of one VCF data line.
type Locus struct {
	Chrom string
	Pos   string
	ID    string
	Ref   string
	Alt   string
}

// GenotypeSet is the parsed content of one VCF file. Every sample has
// exactly len(Loci) calls.
type GenotypeSet struct {
	Path      string
	Samples   []string
	Loci      []Locus
	Genotypes map[string][]GenotypeCall
}

// LocusCount returns the number of loci shared by all samples.
func (gs *GenotypeSet) LocusCount() int {
	return len(gs.Loci)
}

// MalformedPolicy determines what happens to a genotype token that is
// neither a valid call nor a recognized missing-data marker.
type MalformedPolicy int

const (
	// MalformedAsMissing records malformed tokens as missing data
	// and logs them.
	MalformedAsMissing MalformedPolicy = iota
	// MalformedReject fails the parse with an invalid-input error.
	MalformedReject
)

func (p MalformedPolicy) String() string {
	if p == MalformedReject {
		return "reject"
	}
	return "missing"
}

// ParseMalformedPolicy accepts "missing" or "reject".
func ParseMalformedPolicy(s string) (MalformedPolicy, error) {
	switch s {
	case "missing", "":
		return MalformedAsMissing, nil
	case "reject":
		return MalformedReject, nil
	}
	return 0, fmt.Errorf("unknown malformed genotype policy %q (expected missing or reject)", s)
}

var (
	genotypeRe       = regexp.MustCompile(`^([01.])[/|]([01.])$`)
	missingGenotypes = map[string]bool{".": true, "./.": true, ".|.": true}
)

// decodeGenotype converts a VCF GT string to a call. ok is false if
// the token was malformed, i.e., not a two-allele call and not a
// known missing-data marker. Malformed tokens still decode to the
// missing call.
func decodeGenotype(gt string) (call GenotypeCall, ok bool) {
	if missingGenotypes[gt] {
		return missingCall, true
	}
	m := genotypeRe.FindStringSubmatch(gt)
	if m == nil {
		return missingCall, false
	}
	if m[1] == "." || m[2] == "." {
		return missingCall, true
	}
	return GenotypeCall{int(m[1][0]-'0') + 1, int(m[2][0]-'0') + 1}, true
}

// GenotypeParser reads VCF files.
type GenotypeParser struct {
	Malformed MalformedPolicy
}

// ParseFile reads a VCF file, which may be gzip-compressed if its name
// ends in ".gz".
func (p *GenotypeParser) ParseFile(path string) (*GenotypeSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errFromOpen(path, "VCF file", err)
	}
	defer f.Close()
	var rdr io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errInvalidInput(path, fmt.Sprintf("gzip: %s", err))
		}
		defer zr.Close()
		rdr = zr
	}
	return p.Parse(path, rdr)
}

// Parse reads VCF text from r. name is used in log messages and
// errors.
func (p *GenotypeParser) Parse(name string, r io.Reader) (*GenotypeSet, error) {
	gs := &GenotypeSet{Path: name, Genotypes: map[string][]GenotypeCall{}}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1<<16), 1<<28)
	lineNum := 0
	headerSeen := false
	malformed := 0
	missing := 0
	skipped := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.HasPrefix(line, "#CHROM") {
			fields := strings.Split(line, "\t")
			if len(fields) < vcfFixedColumns {
				return nil, errInvalidInput(name, fmt.Sprintf("malformed header at line %d: %d columns, expected at least %d", lineNum, len(fields), vcfFixedColumns))
			}
			gs.Samples = fields[vcfFixedColumns:]
			for _, sample := range gs.Samples {
				if _, dup := gs.Genotypes[sample]; dup {
					return nil, errInvalidInput(name, fmt.Sprintf("duplicate sample id %q in header", sample))
				}
				gs.Genotypes[sample] = nil
			}
			headerSeen = true
			log.WithField("file", name).Debugf("found %d samples", len(gs.Samples))
			continue
		} else if strings.HasPrefix(line, "#") || line == "" {
			continue
		} else if !headerSeen {
			log.Warnf("%s line %d: data line before #CHROM header, skipping", name, lineNum)
			skipped++
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < vcfFixedColumns {
			log.Warnf("%s line %d: only %d columns, skipping", name, lineNum, len(fields))
			skipped++
			continue
		}
		gtIndex := -1
		for i, key := range strings.Split(fields[8], ":") {
			if key == "GT" {
				gtIndex = i
				break
			}
		}
		if gtIndex < 0 {
			log.Warnf("%s line %d: FORMAT %q has no GT field, skipping", name, lineNum, fields[8])
			skipped++
			continue
		}
		gs.Loci = append(gs.Loci, Locus{
			Chrom: fields[0],
			Pos:   fields[1],
			ID:    fields[2],
			Ref:   fields[3],
			Alt:   fields[4],
		})
		for i, sample := range gs.Samples {
			call := missingCall
			if col := vcfFixedColumns + i; col < len(fields) {
				subfields := strings.Split(fields[col], ":")
				gt := ""
				if gtIndex < len(subfields) {
					gt = subfields[gtIndex]
				}
				var ok bool
				call, ok = decodeGenotype(gt)
				if !ok {
					if p.Malformed == MalformedReject {
						return nil, errInvalidInput(name, fmt.Sprintf("line %d: sample %s: malformed genotype %q", lineNum, sample, gt))
					}
					log.Debugf("%s line %d: sample %s: malformed genotype %q treated as missing", name, lineNum, sample, gt)
					malformed++
				}
			} else {
				log.Debugf("%s line %d: no column for sample %s, treating as missing", name, lineNum, sample)
			}
			if call.Missing() {
				missing++
			}
			gs.Genotypes[sample] = append(gs.Genotypes[sample], call)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errParse(name, fmt.Sprintf("read failed after line %d: %s", lineNum, err))
	}
	if len(gs.Samples) == 0 {
		return nil, errInvalidInput(name, "no samples found in VCF file")
	}
	if malformed > 0 {
		log.Warnf("%s: %d malformed genotype calls recorded as missing data", name, malformed)
	}
	log.WithFields(log.Fields{
		"file":    name,
		"samples": len(gs.Samples),
		"loci":    len(gs.Loci),
		"missing": missing,
		"skipped": skipped,
	}).Info("parsed VCF")
	return gs, nil
}
