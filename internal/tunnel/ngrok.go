package tunnel

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/The-Promised-Neverland/tsb/pkg/logger"
	"golang.ngrok.com/ngrok"
	ngrokconfig "golang.ngrok.com/ngrok/config"
)

// Error codes ngrok returns for a missing, malformed, or revoked authtoken.
var credentialCodes = map[string]bool{
	"ERR_NGROK_105":  true,
	"ERR_NGROK_106":  true,
	"ERR_NGROK_107":  true,
	"ERR_NGROK_4018": true,
}

type codedError interface {
	ErrorCode() string
}

func isCredentialError(err error) bool {
	var coded codedError
	if errors.As(err, &coded) {
		return credentialCodes[coded.ErrorCode()]
	}
	return false
}

type openFunc func(ctx context.Context, port int, token string) (Tunnel, error)

type Ngrok struct {
	tokens *TokenStore
	open   openFunc
}

func NewNgrok(tokens *TokenStore) *Ngrok {
	return &Ngrok{tokens: tokens, open: forward}
}

// Open forwards a public HTTPS endpoint to the local port. A rejected token is re-prompted once.
func (n *Ngrok) Open(ctx context.Context, port int) (Tunnel, error) {
	token, err := n.tokens.Resolve()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTunnel, err)
	}
	tun, err := n.open(ctx, port, token)
	if err == nil {
		return tun, nil
	}
	if !isCredentialError(err) {
		return nil, fmt.Errorf("%w: failed to start ngrok: %w", ErrTunnel, err)
	}
	logger.Log.Warn("ngrok rejected the authtoken, asking for a new one", "err", err)
	token, askErr := n.tokens.Ask()
	if askErr != nil {
		return nil, fmt.Errorf("%w: authtoken rejected: %w", ErrTunnel, errors.Join(err, askErr))
	}
	tun, err = n.open(ctx, port, token)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to start ngrok: %w", ErrTunnel, err)
	}
	return tun, nil
}

type ngrokTunnel struct {
	fwd ngrok.Forwarder
}

func (t *ngrokTunnel) URL() string { return t.fwd.URL() }

func (t *ngrokTunnel) Close() error {
	if err := t.fwd.Close(); err != nil {
		return fmt.Errorf("failed to close ngrok tunnel: %w", err)
	}
	return nil
}

func forward(ctx context.Context, port int, token string) (Tunnel, error) {
	backend, err := url.Parse(fmt.Sprintf("http://127.0.0.1:%d", port))
	if err != nil {
		return nil, err
	}
	fwd, err := ngrok.ListenAndForward(ctx, backend, ngrokconfig.HTTPEndpoint(), ngrok.WithAuthtoken(token))
	if err != nil {
		return nil, err
	}
	logger.Log.Info("ngrok tunnel established", "url", fwd.URL(), "backend", backend.String())
	return &ngrokTunnel{fwd: fwd}, nil
}
