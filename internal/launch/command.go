// SPDX-License-Identifier: MPL-2.0

package launch

import (
	"errors"
	"fmt"

	"mvdan.cc/sh/v3/shell"
)

// DefaultCommand starts the backend with the installed interpreter and serves
// the installed web assets.
const DefaultCommand = `"$PYTHON" -m nodetool.cli serve --static-folder "$WEB_DIR"`

// ErrEmptyCommand is returned when a command line expands to no words.
var ErrEmptyCommand = errors.New("server command is empty")

// ParseCommand splits cmdline into words with POSIX shell quoting rules and
// expands $VAR references through lookup. Layout variables take precedence
// over lookup.
func ParseCommand(cmdline string, vars map[string]string, lookup func(string) string) ([]string, error) {
	fields, err := shell.Fields(cmdline, func(name string) string {
		if v, ok := vars[name]; ok {
			return v
		}
		if lookup != nil {
			return lookup(name)
		}
		return ""
	})
	if err != nil {
		return nil, fmt.Errorf("parsing server command %q: %w", cmdline, err)
	}
	if len(fields) == 0 {
		return nil, ErrEmptyCommand
	}
	return fields, nil
}
