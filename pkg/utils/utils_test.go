package utils

import (
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestJoinURL(t *testing.T) {
	tests := []struct {
		base, path, want string
	}{
		{"https://abc.ngrok.app", "/init", "https://abc.ngrok.app/init"},
		{"https://abc.ngrok.app/", "/init", "https://abc.ngrok.app/init"},
		{"https://abc.ngrok.app//", "send_chunk", "https://abc.ngrok.app/send_chunk"},
		{"http://127.0.0.1:8000", "status", "http://127.0.0.1:8000/status"},
	}
	for _, tt := range tests {
		if got := JoinURL(tt.base, tt.path); got != tt.want {
			t.Errorf("JoinURL(%q, %q) = %q, want %q", tt.base, tt.path, got, tt.want)
		}
	}
}

func TestWebSocketURL(t *testing.T) {
	if got := WebSocketURL("https://abc.ngrok.app/", "/ws"); got != "wss://abc.ngrok.app/ws" {
		t.Errorf("WebSocketURL() = %q", got)
	}
	if got := WebSocketURL("http://127.0.0.1:8000", "/ws"); got != "ws://127.0.0.1:8000/ws" {
		t.Errorf("WebSocketURL() = %q", got)
	}
}

func TestFindFreePortSkipsBusyPort(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	busy := ln.Addr().(*net.TCPAddr).Port

	if _, err := FindFreePort(busy, busy+1); !errors.Is(err, ErrNoFreePort) {
		t.Errorf("FindFreePort(busy) error = %v, want ErrNoFreePort", err)
	}
	port, err := FindFreePort(busy, busy+50)
	if err != nil {
		t.Skipf("no free port near %d: %v", busy, err)
	}
	if port == busy {
		t.Errorf("FindFreePort returned busy port %d", busy)
	}
	probe, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		t.Errorf("returned port %d is not bindable: %v", port, err)
		return
	}
	probe.Close()
}
