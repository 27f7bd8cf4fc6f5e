package components

import (
	"fmt"
	"strings"
)

var blocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline renders data right-aligned in width cells, scaled between its
// own minimum and maximum.
func Sparkline(data []float64, width int) string {
	if width <= 0 {
		return ""
	}
	if len(data) == 0 {
		return strings.Repeat(" ", width)
	}
	if len(data) > width {
		data = data[len(data)-width:]
	}
	lo, hi := data[0], data[0]
	for _, v := range data {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	var sb strings.Builder
	sb.WriteString(strings.Repeat(" ", width-len(data)))
	spread := hi - lo
	for _, v := range data {
		if spread == 0 {
			sb.WriteRune(blocks[0])
			continue
		}
		idx := int((v - lo) / spread * float64(len(blocks)-1))
		sb.WriteRune(blocks[min(idx, len(blocks)-1)])
	}
	return sb.String()
}

// FormatRate renders a bits-per-second figure with an SI suffix.
func FormatRate(bps float64) string {
	if bps <= 0 {
		return "0"
	}
	switch {
	case bps >= 1_000_000_000_000:
		return fmt.Sprintf("%.1fT", bps/1_000_000_000_000)
	case bps >= 1_000_000_000:
		return fmt.Sprintf("%.1fG", bps/1_000_000_000)
	case bps >= 1_000_000:
		return fmt.Sprintf("%.1fM", bps/1_000_000)
	case bps >= 1_000:
		return fmt.Sprintf("%.1fK", bps/1_000)
	default:
		return fmt.Sprintf("%.0fb", bps)
	}
}

// FormatErrRate renders errors per second.
func FormatErrRate(perSec float64) string {
	if perSec <= 0 {
		return "0"
	}
	if perSec < 0.01 {
		return "<0.01"
	}
	return fmt.Sprintf("%.2f", perSec)
}

// FormatSpeed renders a link speed in Mbps.
func FormatSpeed(mbps int) string {
	switch {
	case mbps <= 0:
		return "unknown"
	case mbps >= 1_000_000:
		return fmt.Sprintf("%gT", float64(mbps)/1_000_000)
	case mbps >= 1000:
		return fmt.Sprintf("%gG", float64(mbps)/1000)
	default:
		return fmt.Sprintf("%dM", mbps)
	}
}
