// Copyright (C) The Geoassign Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package geoassign

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/pgzip"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	// PolygonPoints is the number of vertices in every credible
	// region polygon, whichever branch produced it.
	PolygonPoints = 100

	// DefaultConfidence is the confidence level used when the
	// caller does not specify one.
	DefaultConfidence = 0.9

	singularDeterminant = 1e-10
	degenerateRadius    = 0.01 // degrees
	eigenvalueFloor     = 1e-10
	minRegionSamples    = 3
)

// LatLng is a [latitude, longitude] pair in degrees.
type LatLng [2]float64

// CredibleRegion is an elliptical confidence region around the
// posterior mean. Polygon vertices follow increasing angle from 0 to
// 2π; the first and last vertices coincide.
type CredibleRegion struct {
	Polygon    []LatLng `json:"polygon"`
	Center     LatLng   `json:"center"`
	Confidence float64  `json:"confidence"`
	NSamples   int      `json:"n_samples"`
}

// ReadPosteriorSamples reads the engine's posterior-sample artifact.
// The last line holds the acceptance rate and is ignored. Other lines
// that do not start with two finite numeric fields are skipped.
func ReadPosteriorSamples(path string) ([]LatLng, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errFromOpen(path, "posterior sample file", err)
	}
	defer f.Close()
	var rdr io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errParse(path, fmt.Sprintf("gzip: %s", err))
		}
		defer zr.Close()
		rdr = zr
	}
	samples, err := parsePosteriorSamples(rdr)
	if err != nil {
		return nil, errParse(path, err.Error())
	}
	log.WithField("file", path).Infof("loaded %d posterior samples", len(samples))
	return samples, nil
}

func parsePosteriorSamples(r io.Reader) ([]LatLng, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read failed: %w", err)
	}
	if len(lines) > 0 {
		lines = lines[:len(lines)-1]
	}
	var samples []LatLng
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		lat, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			continue
		}
		lng, err := strconv.ParseFloat(fields[1], 64)
		if err != nil || !finite(lat) || !finite(lng) {
			continue
		}
		samples = append(samples, LatLng{lat, lng})
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("no valid samples found")
	}
	return samples, nil
}

// EstimateCredibleRegion fits a bivariate normal to samples and returns
// the ellipse containing the given fraction of its mass. confidence
// must be in (0,1) and at least 3 samples are required.
func EstimateCredibleRegion(samples []LatLng, confidence float64) (*CredibleRegion, error) {
	if !(confidence > 0 && confidence < 1) {
		return nil, &Error{
			Code:       CodeInvalidInput,
			Message:    fmt.Sprintf("confidence must be between 0 and 1, got %v", confidence),
			Suggestion: "use a confidence level such as 0.9 or 0.95",
		}
	}
	if len(samples) < minRegionSamples {
		return nil, &Error{
			Code:       CodeParseFailure,
			Message:    fmt.Sprintf("need at least %d samples, got %d", minRegionSamples, len(samples)),
			Suggestion: "run the engine with more iterations",
		}
	}
	data := mat.NewDense(len(samples), 2, nil)
	for i, s := range samples {
		if !finite(s[0]) || !finite(s[1]) {
			return nil, &Error{
				Code:       CodeParseFailure,
				Message:    fmt.Sprintf("sample %d is not a finite coordinate: %v", i, s),
				Suggestion: "check the posterior sample file for nan or inf values",
			}
		}
		data.SetRow(i, s[:])
	}
	center := LatLng{
		stat.Mean(mat.Col(nil, 0, data), nil),
		stat.Mean(mat.Col(nil, 1, data), nil),
	}
	cov := mat.NewSymDense(2, nil)
	stat.CovarianceMatrix(cov, data, nil)

	region := &CredibleRegion{
		Center:     center,
		Confidence: confidence,
		NSamples:   len(samples),
	}
	if mat.Det(cov) < singularDeterminant {
		log.Warn("covariance matrix is nearly singular, using small isotropic region")
		region.Polygon = ellipsePolygon(center, [2]float64{degenerateRadius, degenerateRadius}, mat.NewDense(2, 2, []float64{1, 0, 0, 1}))
		return region, nil
	}

	var eig mat.EigenSym
	if !eig.Factorize(cov, true) {
		return nil, errUnknown(fmt.Errorf("eigendecomposition of covariance matrix %v failed", mat.Formatted(cov)))
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	q := chiSquaredQuantile2(confidence)
	var axes [2]float64
	for i, v := range vals {
		axes[i] = math.Sqrt(math.Max(v, eigenvalueFloor) * q)
	}
	region.Polygon = ellipsePolygon(center, axes, &vecs)
	return region, nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// ellipsePolygon samples the ellipse with the given semi-axes, rotated
// by the columns of rot and centered at center, at PolygonPoints
// angles evenly spaced over [0, 2π].
func ellipsePolygon(center LatLng, axes [2]float64, rot mat.Matrix) []LatLng {
	polygon := make([]LatLng, PolygonPoints)
	for i := range polygon {
		theta := 2 * math.Pi * float64(i) / float64(PolygonPoints-1)
		x := axes[0] * math.Cos(theta)
		y := axes[1] * math.Sin(theta)
		polygon[i] = LatLng{
			center[0] + rot.At(0, 0)*x + rot.At(0, 1)*y,
			center[1] + rot.At(1, 0)*x + rot.At(1, 1)*y,
		}
	}
	return polygon
}

// CredibleRegionFromFile reads a posterior-sample artifact and
// estimates its credible region.
func CredibleRegionFromFile(path string, confidence float64) (*CredibleRegion, error) {
	samples, err := ReadPosteriorSamples(path)
	if err != nil {
		return nil, err
	}
	region, err := EstimateCredibleRegion(samples, confidence)
	if err != nil {
		if e, ok := err.(*Error); ok && e.Path == "" {
			e.Path = path
		}
		return nil, err
	}
	return region, nil
}
