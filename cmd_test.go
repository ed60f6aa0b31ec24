// Copyright (C) The Geoassign Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package geoassign

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/kshedden/gonpy"
	"gopkg.in/check.v1"
)

type cmdSuite struct{}

var _ = check.Suite(&cmdSuite{})

func (s *cmdSuite) referenceArgs(ref ReferenceFileSet) []string {
	return []string{
		"-reference-dir=" + filepath.Dir(filepath.Dir(ref.TrainingVCF)),
		"-species=" + ref.Species,
		"-snps=2",
		"-scat=" + ref.Executable,
		"-loglevel=warn",
	}
}

func (s *cmdSuite) TestAssign(c *check.C) {
	tmpdir := c.MkDir()
	ref := writeReference(c, tmpdir, fakeSCAT)
	var inputs []string
	for i, sample := range []string{"X", "Y", "Z"} {
		path := filepath.Join(tmpdir, sample+".vcf")
		vcf := strings.Replace(testVCF, "FORMAT\tX", "FORMAT\t"+sample, 1)
		if i == 2 {
			vcf = strings.Replace(vcf, "0/1", "1/1", 1)
		}
		writeTestFile(c, path, vcf, 0644)
		inputs = append(inputs, path)
	}
	outdir := filepath.Join(tmpdir, "out")

	var stdout, stderr bytes.Buffer
	args := append(s.referenceArgs(ref), "-o="+outdir, "-j=2", "-confidence=0.95")
	exited := (&assigner{}).RunCommand("geoassign assign", append(args, inputs...), &bytes.Buffer{}, &stdout, &stderr)
	c.Assert(exited, check.Equals, 0, check.Commentf("%s", stderr.String()))
	rundirs := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	c.Assert(rundirs, check.HasLen, 3)
	for _, rundir := range rundirs {
		c.Check(filepath.Dir(rundir), check.Equals, outdir)
		c.Check(filepath.Base(rundir), check.Matches, `inference_[0-9a-f]{32}`)
		buf, err := ioutil.ReadFile(filepath.Join(rundir, "credible_region.json"))
		c.Assert(err, check.IsNil)
		var region CredibleRegion
		c.Assert(json.Unmarshal(buf, &region), check.IsNil)
		c.Check(region.Confidence, check.Equals, 0.95)
		c.Check(region.NSamples, check.Equals, 4)
		c.Check(region.Polygon, check.HasLen, PolygonPoints)
	}

	// same input, same run directory
	stdout.Reset()
	exited = (&assigner{}).RunCommand("geoassign assign", append(args, "-batches=3", "-batch=1", inputs[0], inputs[1], inputs[2]), &bytes.Buffer{}, &stdout, &stderr)
	c.Assert(exited, check.Equals, 0)
	c.Check(stdout.String(), check.Matches, `(?s).*inference_.*\n`)
	c.Check(strings.Count(stdout.String(), "\n"), check.Equals, 1)

	// identical inputs share one run, even with parallel jobs
	stdout.Reset()
	dup := filepath.Join(tmpdir, "X-copy.vcf")
	buf, err := ioutil.ReadFile(inputs[0])
	c.Assert(err, check.IsNil)
	writeTestFile(c, dup, string(buf), 0644)
	exited = (&assigner{}).RunCommand("geoassign assign", append(args, "-j=4", inputs[0], dup, inputs[0], inputs[1]), &bytes.Buffer{}, &stdout, &stderr)
	c.Assert(exited, check.Equals, 0, check.Commentf("%s", stderr.String()))
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	c.Check(lines, check.HasLen, 2)
	c.Check(lines[0] != lines[1], check.Equals, true)
}

func (s *cmdSuite) TestAssignErrors(c *check.C) {
	tmpdir := c.MkDir()
	ref := writeReference(c, tmpdir, failingSCAT)
	testfile := filepath.Join(tmpdir, "X.vcf")
	writeTestFile(c, testfile, testVCF, 0644)

	var stderr bytes.Buffer
	exited := (&assigner{}).RunCommand("geoassign assign", append(s.referenceArgs(ref), "-o="+tmpdir+"/out", testfile), &bytes.Buffer{}, &bytes.Buffer{}, &stderr)
	c.Check(exited, check.Equals, 6)
	c.Check(stderr.String(), check.Matches, `(?s).*\[E004\] SCAT execution failed.*`)

	exited = (&assigner{}).RunCommand("geoassign assign", append(s.referenceArgs(ref), "-species=felis_catus", testfile), &bytes.Buffer{}, &bytes.Buffer{}, &stderr)
	c.Check(exited, check.Equals, 3)

	exited = (&assigner{}).RunCommand("geoassign assign", s.referenceArgs(ref), &bytes.Buffer{}, &bytes.Buffer{}, &stderr)
	c.Check(exited, check.Equals, 2)
}

func (s *cmdSuite) TestConvert(c *check.C) {
	tmpdir := c.MkDir()
	ref := writeReference(c, tmpdir, fakeSCAT)
	testfile := filepath.Join(tmpdir, "X.vcf")
	writeTestFile(c, testfile, testVCF, 0644)
	outdir := filepath.Join(tmpdir, "converted")

	var stdout bytes.Buffer
	exited := (&convertcmd{}).RunCommand("geoassign convert", append(s.referenceArgs(ref), "-i="+testfile, "-o="+outdir), &bytes.Buffer{}, &stdout, os.Stderr)
	c.Assert(exited, check.Equals, 0)
	c.Check(stdout.String(), check.Equals, outdir+"/genotype_scat.txt\n"+outdir+"/location_scat.txt\n")
	buf, err := ioutil.ReadFile(filepath.Join(outdir, "genotype_scat.txt"))
	c.Assert(err, check.IsNil)
	c.Check(string(buf), check.Matches, "X -1 1 1\nX -1 1 2\n(?s).*")
}

func (s *cmdSuite) TestCredibleRegion(c *check.C) {
	tmpdir := c.MkDir()
	path := filepath.Join(tmpdir, "X")
	writeTestFile(c, path, "10.0 20.0\n11.0 21.5\n9.5 19.0\n10.5 20.5\n0.37\n", 0644)

	var stdout bytes.Buffer
	exited := (&credibleRegion{}).RunCommand("geoassign credible-region", []string{"-i", path, "-confidence=0.5"}, &bytes.Buffer{}, &stdout, os.Stderr)
	c.Assert(exited, check.Equals, 0)
	var region CredibleRegion
	c.Assert(json.Unmarshal(stdout.Bytes(), &region), check.IsNil)
	c.Check(region.Confidence, check.Equals, 0.5)
	c.Check(region.NSamples, check.Equals, 4)
	c.Check(region.Center, check.Equals, LatLng{10.25, 20.25})

	exited = (&credibleRegion{}).RunCommand("geoassign credible-region", []string{"-i", path, "-confidence=1.5"}, &bytes.Buffer{}, &stdout, &bytes.Buffer{})
	c.Check(exited, check.Equals, 4)
	exited = (&credibleRegion{}).RunCommand("geoassign credible-region", []string{"-i", path + ".missing"}, &bytes.Buffer{}, &stdout, &bytes.Buffer{})
	c.Check(exited, check.Equals, 3)
}

func (s *cmdSuite) TestPosteriorNumpy(c *check.C) {
	tmpdir := c.MkDir()
	path := filepath.Join(tmpdir, "X")
	writeTestFile(c, path, "10.0 20.0\n11.0 21.5\n9.5 19.0\n0.37\n", 0644)

	exited := (&exportNumpy{}).RunCommand("geoassign posterior-numpy", []string{"-i", path, "-o", tmpdir + "/samples.npy"}, &bytes.Buffer{}, os.Stderr, os.Stderr)
	c.Assert(exited, check.Equals, 0)
	f, err := os.Open(tmpdir + "/samples.npy")
	c.Assert(err, check.IsNil)
	defer f.Close()
	npy, err := gonpy.NewReader(f)
	c.Assert(err, check.IsNil)
	c.Check(npy.Shape, check.DeepEquals, []int{3, 2})
	data, err := npy.GetFloat64()
	c.Assert(err, check.IsNil)
	c.Check(data, check.DeepEquals, []float64{10, 20, 11, 21.5, 9.5, 19})
}

func (s *cmdSuite) TestPlotRegion(c *check.C) {
	tmpdir := c.MkDir()
	path := filepath.Join(tmpdir, "X")
	writeTestFile(c, path, "10.0 20.0\n11.0 21.5\n9.5 19.0\n10.5 20.5\n0.37\n", 0644)

	exited := (&plotRegion{}).RunCommand("geoassign plot-region", []string{"-i", path, "-o", tmpdir + "/region.png"}, &bytes.Buffer{}, os.Stderr, os.Stderr)
	c.Assert(exited, check.Equals, 0)
	fi, err := os.Stat(tmpdir + "/region.png")
	c.Assert(err, check.IsNil)
	c.Check(fi.Size() > 0, check.Equals, true)

	exited = (&plotRegion{}).RunCommand("geoassign plot-region", []string{"-i", path}, &bytes.Buffer{}, os.Stderr, &bytes.Buffer{})
	c.Check(exited, check.Equals, 2)
}

func (s *cmdSuite) TestExitCode(c *check.C) {
	c.Check(exitCode(errLocusMismatch(1, 2)), check.Equals, 5)
	c.Check(exitCode(errPermission("/x", os.ErrPermission)), check.Equals, 7)
	c.Check(exitCode(os.ErrClosed), check.Equals, 1)
}
