package app

import (
	"log/slog"
	"mime"
)

// servedTypes covers the bundled static assets, uploaded logos and
// signatures under the media prefix, and downloadable exports. Minimal
// container images ship without /etc/mime.types, leaving these unknown.
var servedTypes = []struct{ ext, typ string }{
	{".css", "text/css; charset=utf-8"},
	{".js", "text/javascript; charset=utf-8"},
	{".svg", "image/svg+xml"},
	{".woff2", "font/woff2"},
	{".png", "image/png"},
	{".jpg", "image/jpeg"},
	{".jpeg", "image/jpeg"},
	{".gif", "image/gif"},
	{".webp", "image/webp"},
	{".pdf", "application/pdf"},
	{".zip", "application/zip"},
}

func init() {
	registerServedTypes()
}

// registerServedTypes fills in missing extensions and keeps any mapping the
// host already provides.
func registerServedTypes() {
	for _, t := range servedTypes {
		if mime.TypeByExtension(t.ext) != "" {
			continue
		}
		if err := mime.AddExtensionType(t.ext, t.typ); err != nil {
			slog.Default().Warn("register mime type", slog.String("ext", t.ext), slog.Any("error", err))
		}
	}
}
