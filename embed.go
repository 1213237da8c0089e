package blogadmin

import "embed"

// EmbeddedAssets contains the static assets served under /public/:
// style.css
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
