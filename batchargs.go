// Copyright (C) The Geoassign Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package geoassign

import (
	"flag"
	"fmt"
)

// batchArgs splits a list of input specimens across several
// invocations, e.g., one per host.
type batchArgs struct {
	batch   int
	batches int
}

func (b *batchArgs) Flags(flags *flag.FlagSet) {
	flags.IntVar(&b.batches, "batches", 1, "number of batches")
	flags.IntVar(&b.batch, "batch", -1, "only do `N`th batch (-1 = all)")
}

func (b *batchArgs) Check() error {
	if b.batches < 1 {
		return fmt.Errorf("invalid -batches=%d", b.batches)
	} else if b.batch >= b.batches {
		return fmt.Errorf("invalid -batch=%d with -batches=%d", b.batch, b.batches)
	}
	return nil
}

// Slice returns the part of in belonging to the selected batch.
func (b *batchArgs) Slice(in []string) []string {
	if b.batches == 0 || b.batch < 0 {
		return in
	}
	batchsize := (len(in) + b.batches - 1) / b.batches
	start := batchsize * b.batch
	if start > len(in) {
		return nil
	}
	out := in[start:]
	if len(out) > batchsize {
		out = out[:batchsize]
	}
	return out
}
