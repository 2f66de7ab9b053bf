package frontend

import "embed"

// StaticFiles holds the built web client, served by the HTTP server as an
// SPA with index.html fallback.
//
//go:embed dist
var StaticFiles embed.FS
