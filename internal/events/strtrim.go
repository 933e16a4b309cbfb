package events

import "strings"

const (
	MaxPayloadHeight = 40
	MaxPayloadWidth  = 80
)

// TrimToRectangle limits a string to maxHeight lines of maxWidth characters,
// marking cut edges with "...".
func TrimToRectangle(s string, maxHeight int, maxWidth int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > maxHeight {
		lines = lines[:maxHeight]
		lines = append(lines, "...")
	}
	res := ""
	for i, line := range lines {
		if i > 0 {
			res += "\n"
		}
		if len(line) > maxWidth {
			res += line[:maxWidth] + "..."
		} else {
			res += line
		}
	}
	return res
}
