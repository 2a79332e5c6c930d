package web

import (
	"embed"
	"io/fs"
)

//go:embed templates/*.html static
var fsys embed.FS

// Templates holds the page and fragment templates.
func Templates() fs.FS {
	return mustSub("templates")
}

// Static holds stylesheets served under /static/.
func Static() fs.FS {
	return mustSub("static")
}

func mustSub(dir string) fs.FS {
	f, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return f
}
