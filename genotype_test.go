// Copyright (C) The Geoassign Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package geoassign

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/pgzip"
	"gopkg.in/check.v1"
)

type genotypeSuite struct{}

var _ = check.Suite(&genotypeSuite{})

func (s *genotypeSuite) TestDecodeGenotype(c *check.C) {
	for _, trial := range []struct {
		gt   string
		call GenotypeCall
		ok   bool
	}{
		{"0/0", GenotypeCall{1, 1}, true},
		{"0|0", GenotypeCall{1, 1}, true},
		{"1/1", GenotypeCall{2, 2}, true},
		{"1|1", GenotypeCall{2, 2}, true},
		{"0/1", GenotypeCall{1, 2}, true},
		{"0|1", GenotypeCall{1, 2}, true},
		{"1/0", GenotypeCall{2, 1}, true},
		{"1|0", GenotypeCall{2, 1}, true},
		{".", missingCall, true},
		{"./.", missingCall, true},
		{"./0", missingCall, true},
		{"0/.", missingCall, true},
		{"invalid", missingCall, false},
		{"1/2/3", missingCall, false},
		{"a/b", missingCall, false},
		{"", missingCall, false},
		{"1/", missingCall, false},
		{"/1", missingCall, false},
		{"1/2", missingCall, false},
	} {
		call, ok := decodeGenotype(trial.gt)
		c.Check(call, check.Equals, trial.call, check.Commentf("%q", trial.gt))
		c.Check(ok, check.Equals, trial.ok, check.Commentf("%q", trial.gt))
		c.Check(call.Missing(), check.Equals, trial.call == missingCall, check.Commentf("%q", trial.gt))
	}
}

func (s *genotypeSuite) TestParse(c *check.C) {
	gs, err := (&GenotypeParser{}).Parse("ref.vcf", strings.NewReader(referenceVCF))
	c.Assert(err, check.IsNil)
	c.Check(gs.Samples, check.DeepEquals, []string{"A", "B", "C"})
	c.Check(gs.LocusCount(), check.Equals, 2)
	c.Check(gs.Loci[0], check.Equals, Locus{Chrom: "chr1", Pos: "100", ID: "snp1", Ref: "A", Alt: "G"})
	c.Check(gs.Genotypes["A"], check.DeepEquals, []GenotypeCall{{1, 1}, {2, 1}})
	c.Check(gs.Genotypes["B"], check.DeepEquals, []GenotypeCall{{1, 2}, missingCall})
	c.Check(gs.Genotypes["C"], check.DeepEquals, []GenotypeCall{{2, 2}, {1, 1}})
	c.Check(gs.Genotypes["B"][1].Missing(), check.Equals, true)
	c.Check(gs.Genotypes["A"][0].Missing(), check.Equals, false)
}

func (s *genotypeSuite) TestSkipBadLines(c *check.C) {
	vcf := `#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	S1	S2
chr1	100	snp1	A	G	.	PASS	.	GT	0/0	1/1
chr1	150	snp2	A
chr1	200	snp3	C	T	.	PASS	.	DP	10	12
chr1	300	snp4	C	T	.	PASS	.	DP:GT	10:0|1	9:bogus
chr1	400	snp5	C	T	.	PASS	.	GT	1/1
`
	gs, err := (&GenotypeParser{}).Parse("test.vcf", strings.NewReader(vcf))
	c.Assert(err, check.IsNil)
	c.Check(gs.LocusCount(), check.Equals, 3)
	c.Check(gs.Genotypes["S1"], check.DeepEquals, []GenotypeCall{{1, 1}, {1, 2}, {2, 2}})
	c.Check(gs.Genotypes["S2"], check.DeepEquals, []GenotypeCall{{2, 2}, missingCall, missingCall})
}

func (s *genotypeSuite) TestMalformedReject(c *check.C) {
	vcf := `#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	S1
chr1	100	snp1	A	G	.	PASS	.	GT	0/0
chr1	200	snp2	A	G	.	PASS	.	GT	./.
chr1	300	snp3	A	G	.	PASS	.	GT	0/2
`
	_, err := (&GenotypeParser{Malformed: MalformedReject}).Parse("test.vcf", strings.NewReader(vcf))
	perr := checkCode(c, err, CodeInvalidInput)
	c.Check(perr.Message, check.Matches, `line 4: .*"0/2".*`)

	gs, err := (&GenotypeParser{Malformed: MalformedAsMissing}).Parse("test.vcf", strings.NewReader(vcf))
	c.Assert(err, check.IsNil)
	c.Check(gs.Genotypes["S1"], check.DeepEquals, []GenotypeCall{{1, 1}, missingCall, missingCall})

	policy, err := ParseMalformedPolicy("reject")
	c.Check(err, check.IsNil)
	c.Check(policy, check.Equals, MalformedReject)
	_, err = ParseMalformedPolicy("ignore")
	c.Check(err, check.NotNil)
}

func (s *genotypeSuite) TestInvalidFiles(c *check.C) {
	for _, vcf := range []string{
		"",
		"##fileformat=VCFv4.2\n",
		"#CHROM\tPOS\tID\tREF\n",
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\n",
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\tS1\n",
	} {
		_, err := (&GenotypeParser{}).Parse("bad.vcf", strings.NewReader(vcf))
		perr := checkCode(c, err, CodeInvalidInput)
		c.Check(perr.Path, check.Equals, "bad.vcf")
	}
}

func (s *genotypeSuite) TestParseFile(c *check.C) {
	tmpdir := c.MkDir()

	_, err := (&GenotypeParser{}).ParseFile(tmpdir + "/nonexistent.vcf")
	perr := checkCode(c, err, CodeMissingFiles)
	c.Check(perr.Path, check.Equals, tmpdir+"/nonexistent.vcf")

	gzpath := filepath.Join(tmpdir, "ref.vcf.gz")
	f, err := os.Create(gzpath)
	c.Assert(err, check.IsNil)
	zw := pgzip.NewWriter(f)
	_, err = zw.Write([]byte(referenceVCF))
	c.Assert(err, check.IsNil)
	c.Assert(zw.Close(), check.IsNil)
	c.Assert(f.Close(), check.IsNil)
	gs, err := (&GenotypeParser{}).ParseFile(gzpath)
	c.Assert(err, check.IsNil)
	c.Check(gs.Samples, check.HasLen, 3)
	c.Check(gs.LocusCount(), check.Equals, 2)

	if os.Geteuid() == 0 {
		c.Log("running as root, skipping permission check")
		return
	}
	private := filepath.Join(tmpdir, "private.vcf")
	writeTestFile(c, private, testVCF, 0)
	_, err = (&GenotypeParser{}).ParseFile(private)
	checkCode(c, err, CodePermissionDenied)
}
