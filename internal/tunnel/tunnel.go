// Package tunnel publishes the local receiver port at a URL the sender can reach.
package tunnel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/The-Promised-Neverland/tsb/internal/config"
)

var ErrTunnel = errors.New("tunnel")

type Tunnel interface {
	URL() string
	Close() error
}

// Provisioner opens a public endpoint forwarding to 127.0.0.1:port.
type Provisioner interface {
	Open(ctx context.Context, port int) (Tunnel, error)
}

const (
	ProviderNgrok = "ngrok"
	ProviderSTUN  = "stun"
	ProviderLocal = "local"
)

// New selects the provisioner named by TSB_TUNNEL.
func New(cfg *config.Config) (Provisioner, error) {
	switch strings.ToLower(cfg.TunnelProvider()) {
	case ProviderNgrok, "":
		return NewNgrok(NewTokenStore(cfg.NgrokAuthToken(), cfg.TokenFile())), nil
	case ProviderSTUN:
		return NewSTUN(cfg.StunServerAddr()), nil
	case ProviderLocal:
		return Local{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrTunnel, cfg.TunnelProvider())
	}
}
