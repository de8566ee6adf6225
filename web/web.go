// Package web embeds the browser client served by the relay.
package web

import (
	"embed"
	"io/fs"
)

//go:embed static
var static embed.FS

// Pages returns the static client rooted at its directory, so login.html is
// at the top level.
func Pages() fs.FS {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
