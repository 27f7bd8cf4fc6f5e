package components

import (
	"fmt"
	"math"
	"strings"
)

// chartBlocks go from empty to full; index 8 is a full cell.
var chartBlocks = []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

const chartLabelWidth = 8

// RenderChart renders data (oldest first) as a block chart of the given
// size, title row included. Y-axis labels are produced by format.
func RenderChart(data []float64, width, height int, title string, format func(float64) string) string {
	width = max(width, 10)
	height = max(height, 4)
	plotWidth := max(width-chartLabelWidth, 2)
	plotHeight := max(height-1, 2)

	lines := []string{centerText(title, width)}

	if len(data) == 0 {
		blank := strings.Repeat(" ", chartLabelWidth+plotWidth)
		for range plotHeight {
			lines = append(lines, blank)
		}
		return strings.Join(lines, "\n")
	}
	if len(data) > plotWidth {
		data = data[len(data)-plotWidth:]
	}

	lo, hi := data[0], data[0]
	for _, v := range data {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if hi == lo {
		hi = lo + 1
	}
	// Rates are never negative, so anchor the axis at zero.
	lo = min(lo, 0)
	spread := hi - lo
	padding := strings.Repeat(" ", plotWidth-len(data))

	for row := plotHeight - 1; row >= 0; row-- {
		cellBottom := lo + spread*float64(row)/float64(plotHeight)
		cellTop := lo + spread*float64(row+1)/float64(plotHeight)

		label := fmt.Sprintf("%7s ", format(cellTop))
		if len(label) > chartLabelWidth {
			label = label[len(label)-chartLabelWidth:]
		}

		var sb strings.Builder
		sb.WriteString(label)
		sb.WriteString(padding)
		for _, v := range data {
			switch {
			case v <= cellBottom:
				sb.WriteRune(' ')
			case v >= cellTop:
				sb.WriteRune(chartBlocks[8])
			default:
				idx := int(math.Round((v - cellBottom) / (cellTop - cellBottom) * 8))
				sb.WriteRune(chartBlocks[max(0, min(idx, 8))])
			}
		}
		lines = append(lines, sb.String())
	}
	return strings.Join(lines, "\n")
}

// centerText centers s within the given width, padding with spaces.
func centerText(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	pad := (width - len(s)) / 2
	return strings.Repeat(" ", pad) + s + strings.Repeat(" ", width-len(s)-pad)
}
