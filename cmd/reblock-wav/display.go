package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/tphakala/go-audio-reblock/internal/meter"
)

const (
	// Meter bar range in dB.
	barFloorDB = -60.0
	barWidth   = 20

	defaultTermWidth = 80
)

// meterLine redraws a one-line level display in place.
type meterLine struct {
	w     io.Writer
	width int
}

// newMeterLine returns nil unless f is a terminal and refreshHz is positive.
func newMeterLine(f *os.File, refreshHz int) *meterLine {
	if refreshHz <= 0 || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		width = defaultTermWidth
	}
	return &meterLine{w: f, width: width}
}

func (m *meterLine) draw(levels meter.Levels) {
	line := formatLevels(levels)
	if len(line) > m.width-1 {
		line = line[:m.width-1]
	}
	fmt.Fprintf(m.w, "\r%-*s", m.width-1, line)
}

func (m *meterLine) finish() {
	fmt.Fprintf(m.w, "\r%*s\r", m.width-1, "")
}

// formatLevels shows the input levels in dB and the output levels as bars.
func formatLevels(levels meter.Levels) string {
	var b strings.Builder
	fmt.Fprintf(&b, "in %5.1f/%5.1f dB  out ",
		levels[meter.PreLeft], levels[meter.PreRight])
	for i, c := range []meter.Channel{meter.PostLeft, meter.PostRight} {
		if i > 0 {
			b.WriteByte(' ')
		}
		db := float64(levels[c])
		fmt.Fprintf(&b, "[%s] %5.1f", bar(db), db)
	}
	return b.String()
}

// bar draws db on a barFloorDB..0 scale.
func bar(db float64) string {
	frac := min(max((db-barFloorDB)/-barFloorDB, 0), 1)
	n := int(frac*barWidth + 0.5)
	return strings.Repeat("#", n) + strings.Repeat(" ", barWidth-n)
}
