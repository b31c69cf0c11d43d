package web

import (
	"embed"
	"io/fs"
)

// Templates embeds the bundled invoice and receipt templates.
//
//go:embed templates/invoices/*.html
var Templates embed.FS

// Static embeds static assets.
//
//go:embed static/css/* static/js/*
var Static embed.FS

// TemplateFS returns the bundled templates rooted at their directory.
func TemplateFS() fs.FS {
	sub, err := fs.Sub(Templates, "templates/invoices")
	if err != nil {
		panic(err)
	}
	return sub
}

// StaticFS returns the static assets rooted at the asset directory.
func StaticFS() fs.FS {
	sub, err := fs.Sub(Static, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
