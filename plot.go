// Copyright (C) The Geoassign Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package geoassign

import (
	"errors"
	"flag"
	"fmt"
	"image/color"
	"io"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

type plotRegion struct{}

func (cmd *plotRegion) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", "", "posterior sample `file` written by SCAT")
	outputFilename := flags.String("o", "", "output `filename` (e.g., './region.png'; format is chosen by extension)")
	confidence := flags.Float64("confidence", DefaultConfidence, "confidence `level` in (0,1)")
	title := flags.String("title", "", "plot title (default: input filename)")
	setLogLevel := logLevelFlag(flags)
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if *inputFilename == "" || *outputFilename == "" {
		err = errors.New("error: must specify -i posterior-file and -o filename.png (or try -help)")
		return 2
	}
	if err = setLogLevel(); err != nil {
		return 2
	}
	if *title == "" {
		*title = *inputFilename
	}

	samples, err := ReadPosteriorSamples(*inputFilename)
	if err != nil {
		return exitCode(err)
	}
	region, err := EstimateCredibleRegion(samples, *confidence)
	if err != nil {
		return exitCode(err)
	}
	p, err := regionPlot(*title, samples, region)
	if err != nil {
		return 1
	}
	err = p.Save(6*vg.Inch, 6*vg.Inch, *outputFilename)
	if err != nil {
		return 1
	}
	log.Infof("wrote %s", *outputFilename)
	return 0
}

// regionPlot draws posterior samples, the credible region boundary and
// its center, with longitude on the X axis.
func regionPlot(title string, samples []LatLng, region *CredibleRegion) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "longitude"
	p.Y.Label.Text = "latitude"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(samples))
	for i, s := range samples {
		pts[i] = plotter.XY{X: s[1], Y: s[0]}
	}
	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, err
	}
	scatter.GlyphStyle.Radius = vg.Points(1.5)
	scatter.GlyphStyle.Color = color.RGBA{R: 60, G: 90, B: 160, A: 160}

	boundary := make(plotter.XYs, len(region.Polygon))
	for i, v := range region.Polygon {
		boundary[i] = plotter.XY{X: v[1], Y: v[0]}
	}
	line, err := plotter.NewLine(boundary)
	if err != nil {
		return nil, err
	}
	line.Width = vg.Points(1.5)
	line.Color = color.RGBA{R: 200, A: 255}

	center, err := plotter.NewScatter(plotter.XYs{{X: region.Center[1], Y: region.Center[0]}})
	if err != nil {
		return nil, err
	}
	center.GlyphStyle.Shape = draw.CrossGlyph{}
	center.GlyphStyle.Radius = vg.Points(4)
	center.GlyphStyle.Color = color.Black

	p.Add(scatter, line, center)
	p.Legend.Add("posterior samples", scatter)
	p.Legend.Add(fmt.Sprintf("%g credible region", region.Confidence), line)
	p.Legend.Add("mean", center)
	return p, nil
}
