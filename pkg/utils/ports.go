package utils

import (
	"errors"
	"fmt"
	"net"
)

var ErrNoFreePort = errors.New("no free port available")

// FindFreePort returns the first port in [start, end) that can be bound on all interfaces.
func FindFreePort(start, end int) (int, error) {
	for port := start; port < end; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			continue
		}
		ln.Close()
		return port, nil
	}
	return 0, fmt.Errorf("%w in range %d-%d", ErrNoFreePort, start, end)
}
