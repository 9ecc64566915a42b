package wire

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/maemo32/awgserver/awgerr"
)

// FormatStatusLine renders one notifier-port status line: "LIST<id>:<STATE>\n".
func FormatStatusLine(listID int, state string) string {
	return fmt.Sprintf("LIST%d:%s\n", listID, state)
}

// ParseStatusLine parses a notifier-port status line (without requiring the
// trailing newline), for test and bench-client use.
func ParseStatusLine(line string) (listID int, state string, err error) {
	line = strings.TrimRight(line, "\r\n")
	const prefix = "LIST"
	if !strings.HasPrefix(line, prefix) {
		return 0, "", fmt.Errorf("wire: status line %q missing LIST prefix: %w", line, awgerr.InvalidArgument)
	}
	rest := line[len(prefix):]
	idx := strings.IndexByte(rest, ':')
	if idx < 0 {
		return 0, "", fmt.Errorf("wire: status line %q missing ':': %w", line, awgerr.InvalidArgument)
	}
	id, err := strconv.Atoi(rest[:idx])
	if err != nil {
		return 0, "", fmt.Errorf("wire: status line %q has non-numeric list id: %w", line, awgerr.InvalidArgument)
	}
	return id, rest[idx+1:], nil
}
