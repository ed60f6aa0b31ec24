// Copyright (C) The Geoassign Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package main

import "github.com/geoassign/geoassign"

func main() {
	geoassign.Main()
}
