// Package input resolves command-line values that use - (stdin) or @file
// syntax.
package input

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Value expands arg: "-" reads stdin, "@path" reads a file and "@@text"
// stands for the literal "@text". A single trailing newline is dropped from
// read values; anything else is returned as is.
func Value(arg string, stdin io.Reader) (string, error) {
	switch {
	case arg == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return trimNewline(string(data)), nil
	case strings.HasPrefix(arg, "@@"):
		return arg[1:], nil
	case strings.HasPrefix(arg, "@"):
		path := strings.TrimPrefix(arg, "@")
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		return trimNewline(string(data)), nil
	}
	return arg, nil
}

func trimNewline(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}
