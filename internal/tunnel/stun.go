package tunnel

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/The-Promised-Neverland/tsb/pkg/logger"
	"github.com/pion/stun/v2"
)

const defaultSTUNServer = "stun.l.google.com:19302"

// STUNClient discovers the host's public address. It only helps when the receiver port is forwarded.
type STUNClient struct {
	serverAddr string
}

func NewSTUN(serverAddr string) *STUNClient {
	if serverAddr == "" {
		serverAddr = defaultSTUNServer
	}
	return &STUNClient{serverAddr: serverAddr}
}

// QueryPublicIP sends one binding request and returns the XOR-mapped address.
func (s *STUNClient) QueryPublicIP(ctx context.Context) (net.IP, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", s.serverAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial STUN server: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	client, err := stun.NewClient(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create STUN client: %w", err)
	}
	defer client.Close()

	message := stun.MustBuild(stun.TransactionID, stun.BindingRequest)
	var xorAddr stun.XORMappedAddress
	var queryErr error
	err = client.Do(message, func(res stun.Event) {
		if res.Error != nil {
			queryErr = res.Error
			return
		}
		if err := xorAddr.GetFrom(res.Message); err != nil {
			queryErr = fmt.Errorf("failed to get XOR mapped address: %w", err)
		}
	})
	if queryErr != nil {
		return nil, queryErr
	}
	if err != nil {
		return nil, fmt.Errorf("STUN query failed: %w", err)
	}
	logger.Log.Info("STUN endpoint discovered", "endpoint", xorAddr.String())
	return xorAddr.IP, nil
}

func (s *STUNClient) Open(ctx context.Context, port int) (Tunnel, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	ip, err := s.QueryPublicIP(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTunnel, err)
	}
	return staticTunnel{url: "http://" + net.JoinHostPort(ip.String(), fmt.Sprint(port))}, nil
}
