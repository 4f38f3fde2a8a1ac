// Package appfs embeds the files the binaries need at runtime so deployments
// ship a single artifact.
package appfs

import "embed"

//go:embed migrations
var FS embed.FS
