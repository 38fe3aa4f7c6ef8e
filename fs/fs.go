// Package appfs exposes the app's embedded files: goose SQL migrations and
// email templates.
package appfs

import "embed"

//go:embed migrations templates
var FS embed.FS
