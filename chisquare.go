// Copyright (C) The Geoassign Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package geoassign

import (
	"gonum.org/v1/gonum/stat/distuv"
)

var chisquared2 = distuv.ChiSquared{K: 2}

// chiSquaredQuantile2 returns the quantile of the chi-squared
// distribution with two degrees of freedom at probability p, i.e., the
// squared Mahalanobis radius enclosing mass p of a bivariate normal.
func chiSquaredQuantile2(p float64) float64 {
	return chisquared2.Quantile(p)
}
