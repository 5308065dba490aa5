package port

import (
	"fmt"
	"net"
)

const (
	// maxPort is the highest valid TCP/UDP port number.
	maxPort = 65535

	// dynamicRangeStart is the start of the IANA dynamic/private port
	// range (49152-65535), used as the fallback search space when no
	// port near the requested one is free.
	dynamicRangeStart = 49152

	// suggestionSpan is how far above a conflicting port the scanner
	// looks for a nearby replacement before falling back to the
	// dynamic range. Staying near the requested port keeps suggested
	// mappings recognizable (8082 → 8083, not 8082 → 51237).
	suggestionSpan = 100
)

// Scanner checks whether specific ports are available on the host.
//
// The struct is stateless; it exists so the check can be injected as a
// dependency and replaced in tests, and so options like a custom bind
// address have a home later.
type Scanner struct{}

// NewScanner creates a new Scanner.
func NewScanner() *Scanner {
	return &Scanner{}
}

// IsPortAvailable reports whether a port is free on the host for the
// given protocol ("tcp" or "udp"). It binds to all interfaces because
// Docker publishes on 0.0.0.0; checking 127.0.0.1 alone would give
// false positives.
func (s *Scanner) IsPortAvailable(port int, protocol string) bool {
	addr := fmt.Sprintf(":%d", port)

	switch protocol {
	case "tcp", "":
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return false
		}
		defer func() { _ = listener.Close() }()
		return true

	case "udp":
		conn, err := net.ListenPacket("udp", addr)
		if err != nil {
			return false
		}
		defer func() { _ = conn.Close() }()
		return true

	default:
		// Unknown protocol, treat as unavailable to fail safe.
		return false
	}
}

// FindAvailablePort scans [startPort, endPort] inclusive and returns the
// first available port for the protocol. The sequential upward search
// makes the result deterministic for a given host state.
func (s *Scanner) FindAvailablePort(startPort, endPort int, protocol string) (int, error) {
	for port := startPort; port <= endPort; port++ {
		if s.IsPortAvailable(port, protocol) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available %s port found in range %d-%d", protocol, startPort, endPort)
}

// GetUsedPorts returns the TCP ports currently in use within
// [startPort, endPort] inclusive. TCP only: TCP conflicts are the
// primary concern for web services and databases.
func (s *Scanner) GetUsedPorts(startPort, endPort int) []int {
	var used []int
	for port := startPort; port <= endPort; port++ {
		if !s.IsPortAvailable(port, "tcp") {
			used = append(used, port)
		}
	}
	return used
}
