package gateway

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"dice-parlor/internal/session"
	"dice-parlor/internal/turns"
)

type fixture struct {
	store    *session.Store
	registry *Registry
	turns    *turns.Service
	srv      *httptest.Server
}

func newTestServer(t *testing.T, cfg session.Config) *fixture {
	t.Helper()
	st := session.NewStore(cfg)
	reg := NewRegistry()
	svc := turns.NewService(st, reg, nil)
	h := NewHandler(st, svc, reg)
	mux := http.NewServeMux()
	mux.Handle("/ws", h)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &fixture{store: st, registry: reg, turns: svc, srv: srv}
}

// wsClient speaks the raw protocol against the test server: masked client
// frames out, unmasked server frames in.
type wsClient struct {
	conn net.Conn
	br   *bufio.Reader
}

func dialWS(t *testing.T, srvURL, sessionID, playerID, token string) *wsClient {
	t.Helper()
	u, err := url.Parse(srvURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	conn, err := net.DialTimeout("tcp", u.Host, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	req := fmt.Sprintf("GET /ws?session=%s&playerId=%s&token=%s HTTP/1.1\r\n"+
		"Host: %s\r\n"+
		"Upgrade: websocket\r\n"+
		"Connection: Upgrade\r\n"+
		"Sec-WebSocket-Version: 13\r\n"+
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n\r\n",
		sessionID, playerID, token, u.Host)
	if _, err := conn.Write([]byte(req)); err != nil {
		t.Fatalf("write handshake: %v", err)
	}
	br := bufio.NewReader(conn)
	status, err := br.ReadString('\n')
	if err != nil {
		t.Fatalf("read status: %v", err)
	}
	if !strings.Contains(status, "101") {
		t.Fatalf("expected 101, got %q", status)
	}
	sawAccept := false
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			t.Fatalf("read headers: %v", err)
		}
		if strings.HasPrefix(line, "Sec-WebSocket-Accept: s3pPLMBiTxaQ9kYGzzhZRbK+xOo=") {
			sawAccept = true
		}
		if line == "\r\n" {
			break
		}
	}
	if !sawAccept {
		t.Fatal("missing or wrong Sec-WebSocket-Accept")
	}
	c := &wsClient{conn: conn, br: br}
	t.Cleanup(func() { conn.Close() })
	return c
}

// maskedFrame builds a client frame. Tests only need payloads under 64 KiB.
func maskedFrame(opcode byte, payload []byte) []byte {
	key := [4]byte{0x11, 0x22, 0x33, 0x44}
	var header []byte
	switch {
	case len(payload) <= 125:
		header = []byte{0x80 | opcode, 0x80 | byte(len(payload))}
	default:
		header = []byte{0x80 | opcode, 0x80 | 126, 0, 0}
		binary.BigEndian.PutUint16(header[2:], uint16(len(payload)))
	}
	masked := make([]byte, len(payload))
	for i, b := range payload {
		masked[i] = b ^ key[i%4]
	}
	out := append(header, key[:]...)
	return append(out, masked...)
}

func (c *wsClient) sendJSON(t *testing.T, v any) {
	t.Helper()
	body, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := c.conn.Write(maskedFrame(0x1, body)); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func (c *wsClient) readFrame(t *testing.T) (byte, []byte) {
	t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	h := make([]byte, 2)
	if _, err := readFull(c.br, h); err != nil {
		t.Fatalf("read frame header: %v", err)
	}
	opcode := h[0] & 0x0F
	length := int(h[1] & 0x7F)
	if length == 126 {
		ext := make([]byte, 2)
		if _, err := readFull(c.br, ext); err != nil {
			t.Fatalf("read extended length: %v", err)
		}
		length = int(binary.BigEndian.Uint16(ext))
	}
	payload := make([]byte, length)
	if _, err := readFull(c.br, payload); err != nil {
		t.Fatalf("read payload: %v", err)
	}
	return opcode, payload
}

func readFull(br *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := br.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// readMessage skips control frames and decodes the next text message.
func (c *wsClient) readMessage(t *testing.T) map[string]any {
	t.Helper()
	for {
		opcode, payload := c.readFrame(t)
		if opcode != 0x1 {
			continue
		}
		var msg map[string]any
		if err := json.Unmarshal(payload, &msg); err != nil {
			t.Fatalf("unmarshal %q: %v", payload, err)
		}
		return msg
	}
}

func seatAndToken(t *testing.T, f *fixture) (sessionID, playerID, token string) {
	t.Helper()
	s, err := f.store.Create("h1", "Host")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	bundle := f.store.IssueBundle("h1", s.ID)
	return s.ID, "h1", bundle.AccessToken
}

func TestUpgradeRejections(t *testing.T) {
	f := newTestServer(t, session.Config{BotsPerSession: 0})
	sid, _, token := seatAndToken(t, f)

	cases := []struct {
		name string
		url  string
		want int
	}{
		{"missing params", f.srv.URL + "/ws", http.StatusBadRequest},
		{"bad token", f.srv.URL + "/ws?session=" + sid + "&playerId=h1&token=dpa_nope", http.StatusUnauthorized},
		{"token player mismatch", f.srv.URL + "/ws?session=" + sid + "&playerId=h2&token=" + token, http.StatusForbidden},
	}
	for _, tc := range cases {
		resp, err := http.Get(tc.url)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		resp.Body.Close()
		if resp.StatusCode != tc.want {
			t.Fatalf("%s: want %d got %d", tc.name, tc.want, resp.StatusCode)
		}
	}
}

func TestUpgradeRejectsExpiredSession(t *testing.T) {
	f := newTestServer(t, session.Config{SessionTTL: time.Nanosecond})
	sid, _, token := seatAndToken(t, f)
	time.Sleep(time.Millisecond)
	resp, err := http.Get(f.srv.URL + "/ws?session=" + sid + "&playerId=h1&token=" + token)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusGone {
		t.Fatalf("want 410 got %d", resp.StatusCode)
	}
}

func TestHandshakeAndInitialSync(t *testing.T) {
	f := newTestServer(t, session.Config{BotsPerSession: 1})
	sid, pid, token := seatAndToken(t, f)
	c := dialWS(t, f.srv.URL, sid, pid, token)

	msg := c.readMessage(t)
	if msg["type"] != "turn_sync" {
		t.Fatalf("first message type = %v", msg["type"])
	}
	if msg["activeTurnPlayerId"] != "h1" {
		t.Fatalf("active = %v", msg["activeTurnPlayerId"])
	}
	if f.registry.HumansConnected(sid) != 1 {
		t.Fatal("registry should count the socket")
	}
}

func TestRollBroadcastsStampedSnapshot(t *testing.T) {
	f := newTestServer(t, session.Config{BotsPerSession: 0})
	sid, pid, token := seatAndToken(t, f)
	c := dialWS(t, f.srv.URL, sid, pid, token)
	_ = c.readMessage(t) // turn_sync

	c.sendJSON(t, map[string]any{
		"type":   "turn_action",
		"action": "roll",
		"dice": []map[string]any{
			{"dieId": "d1", "sides": 6, "value": 4},
		},
	})
	msg := c.readMessage(t)
	if msg["type"] != "turn_action" {
		t.Fatalf("type = %v", msg["type"])
	}
	roll, ok := msg["roll"].(map[string]any)
	if !ok {
		t.Fatalf("missing roll in %v", msg)
	}
	id, _ := roll["serverRollId"].(string)
	if !strings.HasPrefix(id, "roll_") {
		t.Fatalf("serverRollId = %q", id)
	}
}

func TestRuleRejectionSendsErrorAndResync(t *testing.T) {
	f := newTestServer(t, session.Config{BotsPerSession: 0})
	sid, pid, token := seatAndToken(t, f)
	c := dialWS(t, f.srv.URL, sid, pid, token)
	_ = c.readMessage(t) // turn_sync

	// Score before any roll is a phase violation.
	c.sendJSON(t, map[string]any{
		"type":            "turn_action",
		"action":          "score",
		"rollServerId":    "roll_none",
		"selectedDiceIds": []string{"d1"},
		"points":          3,
	})
	errMsg := c.readMessage(t)
	if errMsg["type"] != "error" || errMsg["code"] != "wrong_phase" {
		t.Fatalf("error = %v", errMsg)
	}
	sync := c.readMessage(t)
	if sync["type"] != "turn_sync" {
		t.Fatalf("expected resync, got %v", sync["type"])
	}
}

func TestUnknownTypeKeepsConnectionOpen(t *testing.T) {
	f := newTestServer(t, session.Config{BotsPerSession: 0})
	sid, pid, token := seatAndToken(t, f)
	c := dialWS(t, f.srv.URL, sid, pid, token)
	_ = c.readMessage(t) // turn_sync

	c.sendJSON(t, map[string]any{"type": "mystery"})
	msg := c.readMessage(t)
	if msg["type"] != "error" || msg["code"] != "unknown_type" {
		t.Fatalf("error = %v", msg)
	}

	// Still usable.
	c.sendJSON(t, map[string]any{"type": "player_notification", "message": "hello"})
	msg = c.readMessage(t)
	if msg["type"] != "player_notification" || msg["message"] != "hello" {
		t.Fatalf("broadcast = %v", msg)
	}
	if msg["source"] != "player" {
		t.Fatalf("source = %v", msg["source"])
	}
}

func TestGameUpdateRequiresTitleAndContent(t *testing.T) {
	f := newTestServer(t, session.Config{BotsPerSession: 0})
	sid, pid, token := seatAndToken(t, f)
	c := dialWS(t, f.srv.URL, sid, pid, token)
	_ = c.readMessage(t)

	c.sendJSON(t, map[string]any{"type": "game_update", "title": "no content"})
	msg := c.readMessage(t)
	if msg["type"] != "error" || msg["code"] != "missing_field" {
		t.Fatalf("error = %v", msg)
	}
}

func TestPingGetsPong(t *testing.T) {
	f := newTestServer(t, session.Config{BotsPerSession: 0})
	sid, pid, token := seatAndToken(t, f)
	c := dialWS(t, f.srv.URL, sid, pid, token)
	_ = c.readMessage(t)

	if _, err := c.conn.Write(maskedFrame(0x9, []byte("hb"))); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	opcode, payload := c.readFrame(t)
	if opcode != 0xA || string(payload) != "hb" {
		t.Fatalf("opcode=%#x payload=%q", opcode, payload)
	}
}

func TestUnmaskedClientFrameCloses(t *testing.T) {
	f := newTestServer(t, session.Config{BotsPerSession: 0})
	sid, pid, token := seatAndToken(t, f)
	c := dialWS(t, f.srv.URL, sid, pid, token)
	_ = c.readMessage(t)

	// Server-style frame with no mask bit.
	if _, err := c.conn.Write([]byte{0x81, 0x02, '{', '}'}); err != nil {
		t.Fatalf("write: %v", err)
	}
	opcode, payload := c.readFrame(t)
	if opcode != 0x8 {
		t.Fatalf("expected close frame, got %#x", opcode)
	}
	if code := binary.BigEndian.Uint16(payload); code != 4400 {
		t.Fatalf("close code = %d", code)
	}
}

func TestOversizedFrameCloses(t *testing.T) {
	f := newTestServer(t, session.Config{BotsPerSession: 0})
	sid, pid, token := seatAndToken(t, f)
	c := dialWS(t, f.srv.URL, sid, pid, token)
	_ = c.readMessage(t)

	// Header declaring a 1 MiB payload; the body never needs to arrive.
	header := []byte{0x81, 0x80 | 127, 0, 0, 0, 0, 0, 0x10, 0, 0}
	key := []byte{1, 2, 3, 4}
	if _, err := c.conn.Write(append(header, key...)); err != nil {
		t.Fatalf("write: %v", err)
	}
	opcode, payload := c.readFrame(t)
	if opcode != 0x8 {
		t.Fatalf("expected close frame, got %#x", opcode)
	}
	if code := binary.BigEndian.Uint16(payload); code != 4400 {
		t.Fatalf("close code = %d", code)
	}
}

func TestBroadcastReachesAllSessionSockets(t *testing.T) {
	f := newTestServer(t, session.Config{BotsPerSession: 0})
	sid, _, token1 := seatAndToken(t, f)
	if err := f.store.Join(sid, "h2", "Guest"); err != nil {
		t.Fatalf("join: %v", err)
	}
	bundle2 := f.store.IssueBundle("h2", sid)

	c1 := dialWS(t, f.srv.URL, sid, "h1", token1)
	c2 := dialWS(t, f.srv.URL, sid, "h2", bundle2.AccessToken)
	_ = c1.readMessage(t)
	_ = c2.readMessage(t)

	c1.sendJSON(t, map[string]any{"type": "player_notification", "message": "hi both"})
	for _, c := range []*wsClient{c1, c2} {
		msg := c.readMessage(t)
		if msg["message"] != "hi both" {
			t.Fatalf("broadcast = %v", msg)
		}
	}
	ids := f.registry.ConnectedHumanIDs(sid)
	if len(ids) != 2 {
		t.Fatalf("connected ids = %v", ids)
	}
}

func TestPassthroughSkipsSender(t *testing.T) {
	f := newTestServer(t, session.Config{BotsPerSession: 0})
	sid, _, token1 := seatAndToken(t, f)
	if err := f.store.Join(sid, "h2", "Guest"); err != nil {
		t.Fatalf("join: %v", err)
	}
	bundle2 := f.store.IssueBundle("h2", sid)

	c1 := dialWS(t, f.srv.URL, sid, "h1", token1)
	c2 := dialWS(t, f.srv.URL, sid, "h2", bundle2.AccessToken)
	_ = c1.readMessage(t)
	_ = c2.readMessage(t)

	c1.sendJSON(t, map[string]any{"type": "particle:emit", "effect": "sparks"})
	msg := c2.readMessage(t)
	if msg["type"] != "particle:emit" || msg["playerId"] != "h1" {
		t.Fatalf("passthrough = %v", msg)
	}

	// The sender must not get an echo; the next thing it sees is a later
	// broadcast, not the particle event.
	c2.sendJSON(t, map[string]any{"type": "player_notification", "message": "after"})
	msg = c1.readMessage(t)
	if msg["type"] != "player_notification" {
		t.Fatalf("sender got echoed passthrough: %v", msg)
	}
}

func TestCloseSessionSendsCode(t *testing.T) {
	f := newTestServer(t, session.Config{BotsPerSession: 0})
	sid, pid, token := seatAndToken(t, f)
	c := dialWS(t, f.srv.URL, sid, pid, token)
	_ = c.readMessage(t)

	f.registry.CloseSession(sid, CloseSessionGone, "session expired")
	opcode, payload := c.readFrame(t)
	if opcode != 0x8 {
		t.Fatalf("expected close frame, got %#x", opcode)
	}
	if code := binary.BigEndian.Uint16(payload); code != 4408 {
		t.Fatalf("close code = %d", code)
	}
	if f.registry.HumansConnected(sid) != 0 {
		t.Fatal("registry should be empty after CloseSession")
	}
}
