// Package nodelink models proxy node links of the form
// scheme://credential@host:port?key=value#label and supports rewriting the
// host segment while leaving everything else intact.
package nodelink

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// NodeLink is the parsed form of a node link. Values are never mutated after
// Parse; Rewrite produces a fresh link string instead of changing the
// receiver, so a single NodeLink can be shared across concurrent probe
// workers.
type NodeLink struct {
	Scheme     string
	Credential string
	Host       string
	Port       int
	Params     map[string]string
	Label      string
}

// Parse parses a node link string. Scheme, host, and port are mandatory;
// anything else is optional. The query string is flattened into a map, so a
// repeated key keeps its last value.
func Parse(link string) (*NodeLink, error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return nil, fmt.Errorf("parse node link: %w", err)
	}

	if u.Scheme == "" {
		return nil, fmt.Errorf("node link %q: missing scheme", link)
	}

	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("node link %q: missing host", link)
	}

	portStr := u.Port()
	if portStr == "" {
		return nil, fmt.Errorf("node link %q: missing port", link)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return nil, fmt.Errorf("node link %q: invalid port %q", link, portStr)
	}

	params := make(map[string]string)
	for key, values := range u.Query() {
		if len(values) > 0 {
			params[key] = values[len(values)-1]
		}
	}

	nl := &NodeLink{
		Scheme: u.Scheme,
		Host:   host,
		Port:   port,
		Params: params,
		Label:  u.Fragment,
	}
	if u.User != nil {
		nl.Credential = u.User.Username()
	}

	return nl, nil
}

// Rewrite returns the link serialized with the host segment replaced by
// newHost. Query values are percent-encoded; parameter order follows map
// iteration and is not stable between calls, but re-parsing the result
// always yields the same parameter set.
func (l *NodeLink) Rewrite(newHost string) string {
	var b strings.Builder
	b.WriteString(l.Scheme)
	b.WriteString("://")
	if l.Credential != "" {
		b.WriteString(url.User(l.Credential).String())
		b.WriteByte('@')
	}
	b.WriteString(joinHostPort(newHost, l.Port))

	if len(l.Params) > 0 {
		b.WriteByte('?')
		first := true
		for key, value := range l.Params {
			if !first {
				b.WriteByte('&')
			}
			b.WriteString(key)
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(value))
			first = false
		}
	}

	if l.Label != "" {
		b.WriteByte('#')
		b.WriteString(l.Label)
	}

	return b.String()
}

// String serializes the link with its original host.
func (l *NodeLink) String() string {
	return l.Rewrite(l.Host)
}

// Redacted returns a display form with the credential masked, for logs and
// persisted run metadata.
func (l *NodeLink) Redacted() string {
	var b strings.Builder
	b.WriteString(l.Scheme)
	b.WriteString("://")
	if l.Credential != "" {
		b.WriteString("***@")
	}
	b.WriteString(joinHostPort(l.Host, l.Port))
	if l.Label != "" {
		b.WriteByte('#')
		b.WriteString(l.Label)
	}
	return b.String()
}

// joinHostPort brackets IPv6 literals; plain hosts pass through unchanged.
func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
