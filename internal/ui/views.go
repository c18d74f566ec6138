package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	meterWidth    = 40
	spectrumWidth = 32
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#A40000"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	hitStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFA500"))
	levelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00AA00"))
)

// renderMeters renders the header and one block per source
func renderMeters(m Model) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.Title))
	b.WriteString("\n")
	b.WriteString(dimStyle.Italic(true).Render(fmt.Sprintf("%d sound(s) · q to quit", len(m.Sources))))
	b.WriteString("\n\n")

	if len(m.Sources) == 0 {
		b.WriteString(dimStyle.Render("Waiting for sounds..."))
		b.WriteString("\n")
		return b.String()
	}

	for _, s := range m.Sources {
		b.WriteString(renderSource(m, s))
		b.WriteString("\n")
	}

	return b.String()
}

// renderSource renders level bar, hit marker and spectrum strip for a source
func renderSource(m Model, s SourceMeter) string {
	marker := dimStyle.Render("○")
	if m.flashing(s) {
		marker = hitStyle.Render("●")
	}

	header := fmt.Sprintf(" %s %-14s %6.1f dB  peak %6.1f dB  hits %d",
		marker, s.ID, s.LevelDB(), s.PeakDB, s.Hits)

	bar := levelStyle.Render(renderBar((s.LevelDB()-floorDB)/-floorDB, meterWidth))

	return header + "\n   " + bar + "\n   " + renderSpectrum(s.Bands, spectrumWidth) + "\n"
}

// renderBar renders a horizontal bar for a fraction in [0,1]
func renderBar(fraction float64, width int) string {
	fraction = min(max(fraction, 0), 1)
	filled := int(fraction * float64(width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

var spectrumGlyphs = []rune("▁▂▃▄▅▆▇█")

// renderSpectrum compresses bands into width columns by averaging
func renderSpectrum(bands []float64, width int) string {
	if len(bands) == 0 {
		return dimStyle.Render(strings.Repeat("·", width))
	}

	cols := min(width, len(bands))
	out := make([]rune, cols)
	for c := range out {
		lo := c * len(bands) / cols
		hi := (c + 1) * len(bands) / cols
		sum := 0.0
		for _, v := range bands[lo:hi] {
			sum += v
		}
		v := min(max(sum/float64(hi-lo), 0), 1)
		out[c] = spectrumGlyphs[int(v*float64(len(spectrumGlyphs)-1)+0.5)]
	}
	return string(out)
}
