package inventory

import (
	"fmt"
	"os"
	"strings"
)

// LocalHostname returns override when set, otherwise the OS host name.
// With short, everything after the first dot is dropped.
func LocalHostname(override string, short bool) (string, error) {
	name := strings.TrimSpace(override)
	if name == "" {
		var err error
		name, err = os.Hostname()
		if err != nil {
			return "", fmt.Errorf("%w: local host name: %w", ErrNotFound, err)
		}
	}
	if short {
		name, _, _ = strings.Cut(name, ".")
	}
	if name == "" {
		return "", fmt.Errorf("%w: local host name is empty", ErrNotFound)
	}
	return name, nil
}
