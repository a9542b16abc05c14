// Package templates holds the dashboard's HTML components. They are plain
// templ components so handlers can render pages and HTMX partials alike.
package templates

import (
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/a-h/templ"
)

// htmlWriter accumulates markup and remembers the first write error
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err != nil {
		return
	}
	_, h.err = io.WriteString(h.w, s)
}

// rawf writes formatted markup. Text arguments are escaped, numbers are
// passed through so numeric verbs keep working.
func (h *htmlWriter) rawf(format string, args ...any) {
	escaped := make([]any, len(args))
	for i, a := range args {
		escaped[i] = esc(a)
	}
	h.raw(fmt.Sprintf(format, escaped...))
}

func esc(v any) any {
	if s, ok := v.(fmt.Stringer); ok {
		return templ.EscapeString(s.String())
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.String {
		return templ.EscapeString(rv.String())
	}
	return v
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func optional(v *float64, format string) string {
	if v == nil {
		return "—"
	}
	return fmt.Sprintf(format, *v)
}

// cssToken lower-cases an enum value for use in a class name
func cssToken(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "_", "-"))
}
