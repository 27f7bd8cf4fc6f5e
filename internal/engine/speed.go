package engine

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var speedPattern = regexp.MustCompile(`^\s*([0-9]+(?:\.[0-9]+)?)\s*([gm]?)\s*$`)

// ParseSpeedMbps converts a link speed string such as "1Gbps", "2.5Gbps",
// "1000Mbps", "10G", "100M" or "100" to whole megabits per second. It returns
// 0 for anything it does not recognise.
func ParseSpeedMbps(raw string) int {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0
	}
	s = strings.ReplaceAll(s, "bps", "")
	s = strings.ReplaceAll(s, "b/s", "")
	s = strings.ReplaceAll(s, "mbit", "m")
	s = strings.ReplaceAll(s, "gbit", "g")
	s = strings.TrimSuffix(s, "/s")

	m := speedPattern.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	val, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	if m[2] == "g" {
		val *= 1000
	}
	if val > math.MaxInt32 {
		return 0
	}
	return int(math.Round(val))
}
