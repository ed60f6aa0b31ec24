// Copyright (C) The Geoassign Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package geoassign

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"
)

// runID returns a name derived from the content of the input file, so
// resubmitting the same specimen reuses its run directory and distinct
// specimens never share one.
func runID(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errFromOpen(path, "test VCF", err)
	}
	defer f.Close()
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return fmt.Sprintf("inference_%x", h.Sum(nil)[:16]), nil
}
