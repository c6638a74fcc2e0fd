package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"dice-parlor/internal/config"
)

// dice-bot is an external test client: it opens its own session over the
// REST API, connects to the socket like a browser would, and plays random
// legal turns against the in-server bots.

type die struct {
	DieID string `json:"dieId"`
	Sides int    `json:"sides"`
	Value int    `json:"value"`
}

type rollSnapshot struct {
	Dice         []die  `json:"dice"`
	ServerRollID string `json:"serverRollId"`
}

type turnMessage struct {
	Type               string        `json:"type"`
	PlayerID           string        `json:"playerId"`
	ActiveTurnPlayerID string        `json:"activeTurnPlayerId"`
	Phase              string        `json:"phase"`
	Roll               *rollSnapshot `json:"roll"`
	Score              *struct{}     `json:"score"`
}

type sessionReply struct {
	SessionID string `json:"sessionId"`
	PlayerID  string `json:"playerId"`
	Tokens    struct {
		AccessToken string `json:"accessToken"`
	} `json:"tokens"`
}

func main() {
	cfg, err := config.LoadBot()
	if err != nil {
		log.Fatal(err)
	}

	sess, err := openSession(cfg)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("joined session %s as %s", sess.SessionID, sess.PlayerID)

	wsURL := strings.Replace(cfg.ServerURL, "http", "ws", 1) +
		fmt.Sprintf("/ws?session=%s&playerId=%s&token=%s", sess.SessionID, sess.PlayerID, sess.Tokens.AccessToken)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	turnsPlayed := 0
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg turnMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "turn_sync", "turn_start":
			if activeID(msg) == sess.PlayerID && (msg.Phase == "awaitRoll" || msg.Phase == "") {
				send(conn, rollAction(rnd))
			}
		case "turn_action":
			if msg.PlayerID != sess.PlayerID {
				continue
			}
			if msg.Roll != nil {
				send(conn, scoreAction(msg.Roll))
			} else if msg.Score != nil {
				send(conn, map[string]any{"type": "turn_end"})
			}
		case "turn_end":
			if msg.PlayerID != sess.PlayerID {
				continue
			}
			turnsPlayed++
			log.Printf("finished turn %d/%d", turnsPlayed, cfg.Turns)
			if turnsPlayed >= cfg.Turns {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
				return
			}
		case "error":
			log.Printf("server rejected: %s", data)
		}
	}
}

func openSession(cfg config.BotConfig) (*sessionReply, error) {
	body, _ := json.Marshal(map[string]any{"displayName": cfg.DisplayName})
	resp, err := http.Post(cfg.ServerURL+"/api/sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("create session: status %d", resp.StatusCode)
	}
	var out sessionReply
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func activeID(msg turnMessage) string {
	if msg.ActiveTurnPlayerID != "" {
		return msg.ActiveTurnPlayerID
	}
	return msg.PlayerID
}

var sides = []int{4, 6, 8, 10, 12, 20}

func rollAction(rnd *rand.Rand) map[string]any {
	count := 1 + rnd.Intn(4)
	dice := make([]die, count)
	for i := range dice {
		s := sides[rnd.Intn(len(sides))]
		dice[i] = die{DieID: fmt.Sprintf("d%d", i+1), Sides: s, Value: 1 + rnd.Intn(s)}
	}
	return map[string]any{"type": "turn_action", "action": "roll", "dice": dice}
}

// scoreAction claims every die; points must match the server's own sum of
// sides minus value or the claim is rejected.
func scoreAction(roll *rollSnapshot) map[string]any {
	points := 0
	selected := make([]string, 0, len(roll.Dice))
	for _, d := range roll.Dice {
		points += d.Sides - d.Value
		selected = append(selected, d.DieID)
	}
	return map[string]any{
		"type":            "turn_action",
		"action":          "score",
		"rollServerId":    roll.ServerRollID,
		"selectedDiceIds": selected,
		"points":          points,
	}
}

func send(conn *websocket.Conn, v any) {
	payload, _ := json.Marshal(v)
	_ = conn.WriteMessage(websocket.TextMessage, payload)
}
