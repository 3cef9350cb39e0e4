// Package scripts embeds the Risor reports shipped with scopegraph.
//
// Each report reads the name of the scope it inspects from the target
// variable.
package scripts

import "embed"

//go:embed report/*.risor
var FS embed.FS
