package schedule

import "strings"

// Marker tags the managed block in a crontab. The block is the marker line
// and the single line after it.
const Marker = "# -- multi-restic -- (do not remove this comment!)"

// markerPrefix identifies marker lines, including ones whose trailing text
// was edited by hand.
const markerPrefix = "# -- multi-restic --"

// ParseLines splits crontab text into lines. A trailing newline does not
// produce an empty final line; "\r\n" endings are accepted.
func ParseLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.TrimSuffix(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	return strings.Split(text, "\n")
}

// JoinLines is the inverse of ParseLines: every line is newline terminated.
func JoinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

func isMarker(line string) bool {
	return strings.Contains(strings.TrimSpace(line), markerPrefix)
}

// RemoveManagedBlock drops every marker line together with the line
// following it. All other lines are kept verbatim and in order.
func RemoveManagedBlock(text string) string {
	lines := ParseLines(text)
	kept := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		if isMarker(lines[i]) {
			i++ // skip the job line owned by this marker
			continue
		}
		kept = append(kept, lines[i])
	}
	return JoinLines(kept)
}

// AppendManagedBlock appends the marker and job lines to text.
func AppendManagedBlock(text, job string) string {
	lines := ParseLines(text)
	lines = append(lines, Marker, job)
	return JoinLines(lines)
}
