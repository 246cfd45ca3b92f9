package tunnel

import (
	"context"
	"fmt"
)

// Local serves the loopback address, for LAN use and tests.
type Local struct{}

type staticTunnel struct {
	url string
}

func (t staticTunnel) URL() string  { return t.url }
func (t staticTunnel) Close() error { return nil }

func (Local) Open(ctx context.Context, port int) (Tunnel, error) {
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("%w: invalid port %d", ErrTunnel, port)
	}
	return staticTunnel{url: fmt.Sprintf("http://127.0.0.1:%d", port)}, nil
}
