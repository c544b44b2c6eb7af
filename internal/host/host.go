// Package host parses and normalizes deployment targets.
package host

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultPort is the SSH port used when a host entry carries none.
const DefaultPort = 22

// Host represents one remote deployment target.
type Host struct {
	Address  string // Hostname or IP address
	Port     int    // SSH port number
	User     string // Deploy username
	Original string // Original entry from the host list
}

// String renders the target as user@address, the form used for remote
// invocation and reporting.
func (h Host) String() string {
	if h.User == "" {
		return h.Address
	}
	return h.User + "@" + h.Address
}

// Addr returns the dialable address:port string.
func (h Host) Addr() string {
	port := h.Port
	if port == 0 {
		port = DefaultPort
	}
	return fmt.Sprintf("%s:%d", h.Address, port)
}

// ParseList parses a host list that may mix comma and whitespace separators.
// Entries keep their input order and duplicates are kept: a host listed
// twice runs the command twice. Entries of the form user@address override
// defaultUser for that host.
func ParseList(input, defaultUser string) ([]Host, error) {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})

	hosts := make([]Host, 0, len(fields))
	for _, entry := range fields {
		h, err := parseEntry(entry, defaultUser)
		if err != nil {
			return nil, fmt.Errorf("invalid host entry %q: %w", entry, err)
		}
		hosts = append(hosts, h)
	}

	return hosts, nil
}

// parseEntry parses a single host entry in the form [user@]address[:port].
func parseEntry(entry, defaultUser string) (Host, error) {
	h := Host{
		Original: entry,
		Port:     DefaultPort,
		User:     defaultUser,
	}

	rest := entry
	if at := strings.LastIndex(rest, "@"); at != -1 {
		if at == 0 {
			return h, fmt.Errorf("empty user")
		}
		h.User = rest[:at]
		rest = rest[at+1:]
	}

	if colon := strings.LastIndex(rest, ":"); colon != -1 {
		portStr := rest[colon+1:]
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return h, fmt.Errorf("invalid port %q", portStr)
		}
		if port < 1 || port > 65535 {
			return h, fmt.Errorf("port %d out of range", port)
		}
		h.Port = port
		rest = rest[:colon]
	}

	if rest == "" {
		return h, fmt.Errorf("empty address")
	}
	h.Address = rest

	return h, nil
}

// Normalize renders the canonical space-separated address sequence for a
// parsed host list, preserving input order.
func Normalize(hosts []Host) string {
	addrs := make([]string, len(hosts))
	for i, h := range hosts {
		addrs[i] = h.Address
	}
	return strings.Join(addrs, " ")
}

// Render renders the canonical space-separated user@address sequence.
func Render(hosts []Host) string {
	specs := make([]string, len(hosts))
	for i, h := range hosts {
		specs[i] = h.String()
	}
	return strings.Join(specs, " ")
}
