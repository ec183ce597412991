package testutil

import (
	"bufio"
	"strings"
	"testing"
)

// ParseSSEData parses a Server-Sent Events stream that uses only "data:"
// lines and returns the data payloads in order. Each event must be
// terminated by an empty line; comment lines starting with ":" are
// ignored. Multi-line data within one event is joined with newline.
func ParseSSEData(t *testing.T, body string) []string {
	t.Helper()

	var events []string
	var dataLines []string
	scanner := bufio.NewScanner(strings.NewReader(body))
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "data: "):
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))

		case line == "":
			if len(dataLines) > 0 {
				events = append(events, strings.Join(dataLines, "\n"))
				dataLines = nil
			}

		case strings.HasPrefix(line, ":"):
			// comment, ignored

		default:
			t.Fatalf("SSE parse error at line %d: unexpected line %q", lineNum, line)
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("SSE scan error: %v", err)
	}
	if len(dataLines) > 0 {
		t.Fatalf("SSE stream ended without terminating event (missing empty line after %q)", dataLines[0])
	}

	return events
}
