package wire

import (
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
)

// Fixed GUID the protocol concatenates with the client key to derive the
// accept token.
const acceptGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

var ErrBadMethod = errors.New("bad_method")
var ErrMissingUpgrade = errors.New("missing_upgrade_header")
var ErrMissingConnection = errors.New("missing_connection_header")
var ErrBadVersion = errors.New("bad_websocket_version")
var ErrMissingKey = errors.New("missing_websocket_key")

// CheckUpgrade validates the protocol upgrade request and returns the client
// key on success.
func CheckUpgrade(r *http.Request) (string, error) {
	if r.Method != http.MethodGet {
		return "", ErrBadMethod
	}
	if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return "", ErrMissingUpgrade
	}
	if !headerContainsToken(r.Header.Get("Connection"), "upgrade") {
		return "", ErrMissingConnection
	}
	if r.Header.Get("Sec-WebSocket-Version") != "13" {
		return "", ErrBadVersion
	}
	key := strings.TrimSpace(r.Header.Get("Sec-WebSocket-Key"))
	if key == "" {
		return "", ErrMissingKey
	}
	return key, nil
}

// AcceptKey computes base64(SHA-1(key + GUID)).
func AcceptKey(key string) string {
	h := sha1.Sum([]byte(key + acceptGUID))
	return base64.StdEncoding.EncodeToString(h[:])
}

// UpgradeResponse renders the 101 response that completes the handshake.
func UpgradeResponse(key string) []byte {
	var b strings.Builder
	b.WriteString("HTTP/1.1 101 Switching Protocols\r\n")
	b.WriteString("Upgrade: websocket\r\n")
	b.WriteString("Connection: Upgrade\r\n")
	b.WriteString("Sec-WebSocket-Accept: " + AcceptKey(key) + "\r\n")
	b.WriteString("\r\n")
	return []byte(b.String())
}

func headerContainsToken(header, token string) bool {
	for _, part := range strings.Split(header, ",") {
		if strings.EqualFold(strings.TrimSpace(part), token) {
			return true
		}
	}
	return false
}
