package web

import "embed"

// TemplatesFS embeds the HTML partials rendered by the server.
//
//go:embed templates/*.html
var TemplatesFS embed.FS
