// Package netutil handles candidate address intake: reading newline-separated
// IP lists, validating entries, and parsing the user-facing timeout value.
//
// Lines that do not parse as an IP address are policy-dropped, not errors;
// the file being unreadable at all is a configuration error.
package netutil

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ParseAddressList reads one candidate per line from r and returns the
// entries that are syntactically valid IPv4 or IPv6 addresses, de-duplicated
// in first-seen order. Invalid lines are dropped silently at normal
// verbosity and surfaced only as debug diagnostics.
func ParseAddressList(r io.Reader) []string {
	var addrs []string
	seen := make(map[string]struct{})

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		ip := net.ParseIP(line)
		if ip == nil {
			log.Debug().Str("line", line).Msg("skipping line that is not a valid IP address")
			continue
		}

		// Normalize so "::1" and "0:0:0:0:0:0:0:1" collapse to one candidate.
		canonical := ip.String()
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		addrs = append(addrs, canonical)
	}

	if err := scanner.Err(); err != nil {
		log.Warn().Err(err).Msg("address list read stopped early")
	}

	return addrs
}

// ReadAddressFile opens path and parses it with ParseAddressList. An
// unreadable file is fatal to the run and reported to the caller.
func ReadAddressFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open address list %q: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return ParseAddressList(f), nil
}

// ParseTimeoutMS parses a timeout given as integer milliseconds.
func ParseTimeoutMS(s string) (time.Duration, error) {
	ms, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: expected integer milliseconds", s)
	}
	if ms <= 0 {
		return 0, fmt.Errorf("invalid timeout %q: must be positive", s)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
