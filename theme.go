package lunarys

import "fmt"

// Theme defines semantic color mappings using ANSI color indices (0-15).
// The user's terminal theme determines the actual RGB values. Markdown names
// the glamour standard style used for assistant replies.
type Theme struct {
	UserMsg   int // User message accent
	Reasoning int // Reasoning text
	Error     int // Error messages
	Muted     int // Status bar, placeholders
	Accent    int // Titles, active conversation
	Markdown  string
}

// DefaultTheme returns the ANSI color mapping for dark terminals.
func DefaultTheme() Theme {
	return Theme{
		UserMsg:   4,
		Reasoning: 8,
		Error:     1,
		Muted:     8,
		Accent:    5,
		Markdown:  "dark",
	}
}

// LightTheme returns the ANSI color mapping for light terminals.
func LightTheme() Theme {
	return Theme{
		UserMsg:   4,
		Reasoning: 7,
		Error:     1,
		Muted:     7,
		Accent:    5,
		Markdown:  "light",
	}
}

// PlainTheme disables colors. Markdown is laid out without escape codes.
func PlainTheme() Theme {
	return Theme{
		UserMsg:   -1,
		Reasoning: -1,
		Error:     -1,
		Muted:     -1,
		Accent:    -1,
		Markdown:  "notty",
	}
}

// ThemeByName resolves a configured theme name. An empty name selects
// the default.
func ThemeByName(name string) (Theme, error) {
	switch name {
	case "", "dark":
		return DefaultTheme(), nil
	case "light":
		return LightTheme(), nil
	case "plain":
		return PlainTheme(), nil
	}
	return Theme{}, fmt.Errorf("unknown theme %q", name)
}
