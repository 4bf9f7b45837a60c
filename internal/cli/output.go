package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"

	"romforge/internal/firstdiff"
)

// Colour modes accepted by --color.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Palette.
var (
	colorOffset  = lipgloss.Color("#14B8A6")
	colorMuted   = lipgloss.Color("#64748B")
	colorBuilt   = lipgloss.Color("#EF4444")
	colorRef     = lipgloss.Color("#22C55E")
	colorWarning = lipgloss.Color("#F59E0B")
)

// styles renders diff reports. The zero-colour variant renders plain text.
type styles struct {
	Offset   lipgloss.Style
	Built    lipgloss.Style
	Expected lipgloss.Style
	Insn     lipgloss.Style
	Context  lipgloss.Style
	Warning  lipgloss.Style
	Success  lipgloss.Style
}

// useColor decides whether w should receive ANSI escapes.
func useColor(mode string, w io.Writer) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case ColorAlways:
		return true, nil
	case ColorNever:
		return false, nil
	case ColorAuto, "":
		if os.Getenv("NO_COLOR") != "" {
			return false, nil
		}
		f, ok := w.(*os.File)
		if !ok {
			return false, nil
		}
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()), nil
	default:
		return false, invalidInvocationf("invalid --color %q (expected auto|always|never)", mode)
	}
}

func newStyles(w io.Writer, color bool) styles {
	r := lipgloss.NewRenderer(w)
	if color {
		r.SetColorProfile(termenv.ANSI256)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	return styles{
		Offset:   r.NewStyle().Bold(true).Foreground(colorOffset),
		Built:    r.NewStyle().Foreground(colorBuilt),
		Expected: r.NewStyle().Foreground(colorRef),
		Insn:     r.NewStyle().Bold(true),
		Context:  r.NewStyle().Foreground(colorMuted),
		Warning:  r.NewStyle().Foreground(colorWarning),
		Success:  r.NewStyle().Foreground(colorRef),
	}
}

func writeReport(w io.Writer, st styles, r firstdiff.Report) {
	if r.Empty() {
		fmt.Fprintln(w, st.Success.Render("No differences found"))
		return
	}
	for _, e := range r.Entries {
		writeEntry(w, st, e)
	}
	if r.SizeMismatch != nil {
		fmt.Fprintln(w, st.Warning.Render(r.SizeMismatch.String()))
	}
}

func writeEntry(w io.Writer, st styles, e firstdiff.Entry) {
	var b strings.Builder
	b.WriteString(st.Offset.Render(fmt.Sprintf("ROM 0x%06X", e.Run.Offset)))
	if e.HasVram {
		b.WriteString(st.Context.Render(fmt.Sprintf(" (RAM 0x%08X)", e.Vram)))
	}
	unit := "bytes"
	if e.Run.Length == 1 {
		unit = "byte"
	}
	fmt.Fprintf(&b, ", %d %s: ", e.Run.Length, unit)

	parts := strings.SplitN(e.Bytes(), " vs ", 2)
	b.WriteString(st.Built.Render(parts[0]))
	b.WriteString(" vs ")
	if len(parts) == 2 {
		b.WriteString(st.Expected.Render(parts[1]))
	}
	b.WriteString("  ")
	b.WriteString(st.Insn.Render(e.Text))
	if ctx := e.Context(); ctx != "" {
		b.WriteString("  ")
		b.WriteString(st.Context.Render(ctx))
	}
	fmt.Fprintln(w, b.String())
}
