package report

import (
	"strconv"
	"strings"
)

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB"}

// FormatSize renders a byte count with binary prefixes and at most two
// decimals: 0 → "0 B", 1536 → "1.5 KB", 1048576 → "1 MB".
func FormatSize(bytes int64) string {
	if bytes < 0 {
		// -(bytes+1)+1 stays in range for math.MinInt64.
		return "-" + formatUnsigned(uint64(-(bytes+1))+1)
	}
	return formatUnsigned(uint64(bytes))
}

func formatUnsigned(bytes uint64) string {
	value := float64(bytes)
	unit := 0
	for value >= 1024 && unit < len(sizeUnits)-1 {
		value /= 1024
		unit++
	}

	s := strconv.FormatFloat(value, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	return s + " " + sizeUnits[unit]
}

// ShortDigest abbreviates a digest for terminal output.
func ShortDigest(digest string) string {
	if len(digest) <= 16 {
		return digest
	}
	return digest[:16]
}
