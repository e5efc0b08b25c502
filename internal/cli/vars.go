// Copyright (c) 2022. Alvin Baena.
// SPDX-License-Identifier: MIT

package cli

var (
	// root
	verbose bool
	// root
	profile bool
	// root
	pprofPort uint16
	// create
	inputFile string
	// create
	outFile string
	// create
	probability uint64
	// create
	indexGranularity uint64
	// create
	overwrite bool
	// query
	host string
	// query
	queryPort uint16
	// query
	username string
	// query
	password string
	// query
	hashed bool
)
