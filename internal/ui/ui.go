package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/muesli/termenv"
)

type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// LinkColor is the foreground used for job links in tables and panels.
const LinkColor = "#87CEEB"

// ANSI palette indexes for message kinds.
const (
	colorError   = "1"
	colorSuccess = "2"
	colorWarn    = "3"
	colorInfo    = "4"
)

// UI writes user-facing messages. Errors, warnings and progress go to Err so
// exported rows on Out stay machine-readable.
type UI struct {
	Out          io.Writer
	Err          io.Writer
	Output       *termenv.Output
	ErrOutput    *termenv.Output
	ColorEnabled bool
}

func New(out io.Writer, err io.Writer, mode ColorMode, disableColor bool) *UI {
	output := termenv.NewOutput(out)
	return &UI{
		Out:          out,
		Err:          err,
		Output:       output,
		ErrOutput:    termenv.NewOutput(err),
		ColorEnabled: shouldEnableColor(output, mode, disableColor),
	}
}

func shouldEnableColor(output *termenv.Output, mode ColorMode, disableColor bool) bool {
	if disableColor {
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}

	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		return output.ColorProfile() != termenv.Ascii
	}
}

func (u *UI) Errorf(format string, args ...any) {
	u.print(u.Err, u.ErrOutput, foreground(colorError), format, args...)
}

func (u *UI) Warnf(format string, args ...any) {
	u.print(u.Err, u.ErrOutput, foreground(colorWarn), format, args...)
}

// Progressf reports extraction progress.
func (u *UI) Progressf(format string, args ...any) {
	u.print(u.Err, u.ErrOutput, faint, format, args...)
}

func (u *UI) Infof(format string, args ...any) {
	u.print(u.Out, u.Output, foreground(colorInfo), format, args...)
}

func (u *UI) Successf(format string, args ...any) {
	u.print(u.Out, u.Output, foreground(colorSuccess), format, args...)
}

type styleFunc func(termenv.Style, *termenv.Output) termenv.Style

func foreground(color string) styleFunc {
	return func(s termenv.Style, output *termenv.Output) termenv.Style {
		return s.Foreground(output.Color(color))
	}
}

func faint(s termenv.Style, _ *termenv.Output) termenv.Style {
	return s.Faint()
}

func (u *UI) print(w io.Writer, output *termenv.Output, style styleFunc, format string, args ...any) {
	msg := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	if u.ColorEnabled && output != nil {
		msg = style(output.String(msg), output).String()
	}
	fmt.Fprintln(w, msg)
}

// ColorizeLink paints text in LinkColor when enabled.
func ColorizeLink(output *termenv.Output, enabled bool, text string) string {
	if !enabled || output == nil {
		return text
	}
	return output.String(text).Foreground(output.Color(LinkColor)).String()
}

// Emphasize renders text bold when enabled.
func Emphasize(output *termenv.Output, enabled bool, text string) string {
	if !enabled || output == nil {
		return text
	}
	return output.String(text).Bold().String()
}

func NormalizeColorMode(value string) ColorMode {
	switch ColorMode(strings.ToLower(strings.TrimSpace(value))) {
	case ColorAlways:
		return ColorAlways
	case ColorNever:
		return ColorNever
	default:
		return ColorAuto
	}
}
