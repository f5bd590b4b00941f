// internal/app/features/crews/templates.go
package crews

import (
	"embed"

	"github.com/dalemusser/waffle/pantry/templates"
)

//go:embed templates/*.gohtml
var FS embed.FS

func init() {
	templates.Register(templates.Set{
		Name:     "crews",
		FS:       FS,
		Patterns: []string{"templates/*.gohtml"},
	})
}
