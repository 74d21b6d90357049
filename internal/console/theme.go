package console

import (
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
)

// Theme contains the colors for the console.
type Theme struct {
	Primary lipgloss.TerminalColor
	Subtle  lipgloss.TerminalColor
	Success lipgloss.TerminalColor
	Error   lipgloss.TerminalColor
	Normal  lipgloss.TerminalColor

	SignalHigh lipgloss.AdaptiveColor
	SignalLow  lipgloss.AdaptiveColor
}

// CurrentTheme is the active theme for the console.
var CurrentTheme = NewDefaultTheme()

// NewDefaultTheme creates a new default theme.
func NewDefaultTheme() Theme {
	return Theme{
		Primary: lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#D359E3"}, // Purple/Pink
		Subtle:  lipgloss.AdaptiveColor{Light: "#BDBDBD", Dark: "#616161"}, // Gray
		Success: lipgloss.AdaptiveColor{Light: "#388E3C", Dark: "#81C784"}, // Green
		Error:   lipgloss.AdaptiveColor{Light: "#D32F2F", Dark: "#E57373"}, // Red
		Normal:  lipgloss.AdaptiveColor{Light: "#212121", Dark: "#FFFFFF"}, // Black/White

		SignalHigh: lipgloss.AdaptiveColor{Light: "#00B300", Dark: "#00FF00"},
		SignalLow:  lipgloss.AdaptiveColor{Light: "#D05F00", Dark: "#BC3C00"},
	}
}

// Signal range mapped onto the low..high gradient.
const (
	weakDBm   = -90
	strongDBm = -30
)

// SignalColor blends the theme's signal colors by strength.
func (t Theme) SignalColor(dbm int, dark bool) lipgloss.Color {
	high, low := t.SignalHigh.Light, t.SignalLow.Light
	if dark {
		high, low = t.SignalHigh.Dark, t.SignalLow.Dark
	}
	start, err := colorful.Hex(low)
	if err != nil {
		return lipgloss.Color(high)
	}
	end, err := colorful.Hex(high)
	if err != nil {
		return lipgloss.Color(low)
	}

	p := float64(dbm-weakDBm) / float64(strongDBm-weakDBm)
	if p < 0 {
		p = 0
	} else if p > 1 {
		p = 1
	}
	return lipgloss.Color(start.BlendRgb(end, p).Clamped().Hex())
}

// themeColor is a theme entry: either one color or a [light, dark] pair.
type themeColor struct {
	lipgloss.AdaptiveColor
}

func (c *themeColor) UnmarshalTOML(v interface{}) error {
	switch v := v.(type) {
	case string:
		c.Light, c.Dark = v, v
	case []interface{}:
		if len(v) != 2 {
			return fmt.Errorf("color pair must have 2 entries, got %d", len(v))
		}
		light, ok1 := v[0].(string)
		dark, ok2 := v[1].(string)
		if !ok1 || !ok2 {
			return fmt.Errorf("color pair must be strings")
		}
		c.Light, c.Dark = light, dark
	default:
		return fmt.Errorf("invalid color %v", v)
	}
	return nil
}

// themeFile represents the structure of the theme TOML file.
// Pointers distinguish a missing value from an empty one, so a file can
// override only the colors it names.
type themeFile struct {
	Primary    *themeColor
	Subtle     *themeColor
	Success    *themeColor
	Error      *themeColor
	Normal     *themeColor
	SignalHigh *themeColor
	SignalLow  *themeColor
}

// LoadTheme reads a TOML theme from r and overrides the default theme.
// A nil reader does nothing.
func LoadTheme(r io.Reader) error {
	if r == nil {
		return nil
	}

	var tf themeFile
	if _, err := toml.NewDecoder(r).Decode(&tf); err != nil {
		return fmt.Errorf("theme: %w", err)
	}

	theme := NewDefaultTheme()
	set := func(dst *lipgloss.TerminalColor, v *themeColor) {
		if v == nil {
			return
		}
		if v.Light == v.Dark {
			*dst = lipgloss.Color(v.Light)
			return
		}
		*dst = v.AdaptiveColor
	}
	set(&theme.Primary, tf.Primary)
	set(&theme.Subtle, tf.Subtle)
	set(&theme.Success, tf.Success)
	set(&theme.Error, tf.Error)
	set(&theme.Normal, tf.Normal)
	if tf.SignalHigh != nil {
		theme.SignalHigh = tf.SignalHigh.AdaptiveColor
	}
	if tf.SignalLow != nil {
		theme.SignalLow = tf.SignalLow.AdaptiveColor
	}

	CurrentTheme = theme
	return nil
}
