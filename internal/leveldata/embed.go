// Package leveldata provides embedded level layouts and tile profiles and
// utilities for loading them.
package leveldata

import "embed"

// dataFS embeds the sample layouts and tile profiles at build time.
//
//go:embed layouts/*.json tiles.json
var dataFS embed.FS
