// Package markdown renders assistant replies to ANSI-styled terminal output
// using glamour.
package markdown

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/fwojciec/lunarys"
)

type cacheKey struct {
	style string
	width int
}

// Renderers are expensive to build and Render is called on every streamed
// delta, so one renderer is kept per style and width.
var cache struct {
	sync.Mutex
	renderers map[cacheKey]*glamour.TermRenderer
}

// Render parses markdown source and returns styled terminal output wrapped
// to width. On any rendering failure the source is returned unchanged.
func Render(source string, width int, theme lunarys.Theme) string {
	if source == "" {
		return ""
	}
	if width < 1 {
		width = 1
	}
	style := theme.Markdown
	if style == "" {
		style = lunarys.DefaultTheme().Markdown
	}

	cache.Lock()
	defer cache.Unlock()

	r, err := renderer(cacheKey{style: style, width: width})
	if err != nil {
		return source
	}
	out, err := r.Render(source)
	if err != nil {
		return source
	}
	return strings.Trim(out, "\n")
}

func renderer(key cacheKey) (*glamour.TermRenderer, error) {
	if r, ok := cache.renderers[key]; ok {
		return r, nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(key.style),
		glamour.WithWordWrap(key.width),
	)
	if err != nil {
		return nil, err
	}
	if cache.renderers == nil {
		cache.renderers = make(map[cacheKey]*glamour.TermRenderer)
	}
	cache.renderers[key] = r
	return r, nil
}
