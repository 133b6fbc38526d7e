package port

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBadAddress is returned when an lsof NAME column cannot be split into
// a host and a valid port.
var ErrBadAddress = errors.New("malformed address")

// ParseAddress splits an lsof NAME token like "127.0.0.1:3000", "*:8080",
// or "[::1]:3000" into a host and a port. IPv6 hosts lose their brackets;
// an empty host becomes "*" (all interfaces).
func ParseAddress(token string) (string, int, error) {
	if strings.HasPrefix(token, "[") {
		end := strings.Index(token, "]")
		if end < 0 {
			return "", 0, fmt.Errorf("%w: unterminated bracket in %q", ErrBadAddress, token)
		}
		if end+1 >= len(token) || token[end+1] != ':' {
			return "", 0, fmt.Errorf("%w: no port separator in %q", ErrBadAddress, token)
		}
		portNum, err := parsePort(token[end+2:])
		if err != nil {
			return "", 0, fmt.Errorf("%w: %q: %v", ErrBadAddress, token, err)
		}
		host := token[1:end]
		if host == "" {
			host = "*"
		}
		return host, portNum, nil
	}

	idx := strings.LastIndex(token, ":")
	if idx < 0 {
		return "", 0, fmt.Errorf("%w: no port separator in %q", ErrBadAddress, token)
	}
	portNum, err := parsePort(token[idx+1:])
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q: %v", ErrBadAddress, token, err)
	}
	host := token[:idx]
	if host == "" {
		host = "*"
	}
	return host, portNum, nil
}

func parsePort(s string) (int, error) {
	portNum, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if portNum < 0 || portNum > 65535 {
		return 0, fmt.Errorf("port %d out of range", portNum)
	}
	return portNum, nil
}
