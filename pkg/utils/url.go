package utils

import (
	"strings"
)

// JoinURL appends path to base with exactly one slash between them.
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// WebSocketURL rewrites an http(s) base URL to its ws(s) form.
func WebSocketURL(baseURL, path string) string {
	wsURL := strings.Replace(baseURL, "https", "wss", 1)
	wsURL = strings.Replace(wsURL, "http", "ws", 1)
	return JoinURL(wsURL, path)
}
