package gateway

import (
	"encoding/json"
	"time"

	"dice-parlor/internal/game"
	"dice-parlor/internal/session"
)

// ErrorMessage is sent back on an application-level problem. The connection
// stays open; only protocol violations close it.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errMsg(code, message string) ErrorMessage {
	return ErrorMessage{Type: "error", Code: code, Message: message}
}

type turnActionInbound struct {
	Action              string     `json:"action"`
	Dice                []game.Die `json:"dice"`
	RollServerID        string     `json:"rollServerId"`
	SelectedDiceIDs     []string   `json:"selectedDiceIds"`
	Points              int        `json:"points"`
	ProjectedTotalScore int        `json:"projectedTotalScore"`
}

// dispatch routes one inbound text message. The returned bool asks the read
// loop to stop, which only happens when the session itself is gone.
func (h *Handler) dispatch(c *Conn, payload []byte) bool {
	var base struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &base); err != nil {
		h.registry.Unicast(c, errMsg("bad_json", "message is not valid JSON"))
		return false
	}
	_ = h.sessions.Heartbeat(c.sessionID, c.playerID)

	switch base.Type {
	case "chaos_attack", "particle:emit":
		// Cosmetic events pass through untouched apart from attribution.
		// The sender already rendered the effect locally, so skip it.
		var msg map[string]any
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.registry.Unicast(c, errMsg("bad_json", "message is not valid JSON"))
			return false
		}
		msg["sessionId"] = c.sessionID
		msg["playerId"] = c.playerID
		msg["timestamp"] = time.Now().UnixMilli()
		msg["source"] = "player"
		h.registry.BroadcastExcept(c.sessionID, c, msg)

	case "game_update":
		var msg struct {
			Title   string `json:"title"`
			Content string `json:"content"`
		}
		if err := json.Unmarshal(payload, &msg); err != nil || msg.Title == "" || msg.Content == "" {
			h.registry.Unicast(c, errMsg("missing_field", "game_update requires title and content"))
			return false
		}
		h.registry.Broadcast(c.sessionID, map[string]any{
			"type":      "game_update",
			"sessionId": c.sessionID,
			"playerId":  c.playerID,
			"title":     msg.Title,
			"content":   msg.Content,
			"timestamp": time.Now().UnixMilli(),
			"source":    "player",
		})

	case "player_notification":
		var msg struct {
			Message        string `json:"message"`
			TargetPlayerID string `json:"targetPlayerId"`
		}
		if err := json.Unmarshal(payload, &msg); err != nil || msg.Message == "" {
			h.registry.Unicast(c, errMsg("missing_field", "player_notification requires message"))
			return false
		}
		out := map[string]any{
			"type":      "player_notification",
			"sessionId": c.sessionID,
			"playerId":  c.playerID,
			"message":   msg.Message,
			"timestamp": time.Now().UnixMilli(),
			"source":    "player",
		}
		if msg.TargetPlayerID != "" {
			out["targetPlayerId"] = msg.TargetPlayerID
		}
		h.registry.Broadcast(c.sessionID, out)

	case "turn_action":
		var msg turnActionInbound
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.registry.Unicast(c, errMsg("bad_json", "message is not valid JSON"))
			return false
		}
		switch msg.Action {
		case "roll":
			_, err := h.turns.Roll(c.sessionID, c.playerID, msg.Dice, "player")
			return h.turnOutcome(c, err)
		case "score":
			claim := game.ScoreClaim{
				RollServerID:        msg.RollServerID,
				SelectedDiceIDs:     msg.SelectedDiceIDs,
				Points:              msg.Points,
				ProjectedTotalScore: msg.ProjectedTotalScore,
			}
			_, err := h.turns.Score(c.sessionID, c.playerID, claim, "player")
			return h.turnOutcome(c, err)
		default:
			h.registry.Unicast(c, errMsg("bad_action", "turn_action requires action roll or score"))
		}

	case "turn_end":
		err := h.turns.EndTurn(c.sessionID, c.playerID, "player")
		return h.turnOutcome(c, err)

	case "heartbeat":
		// Already recorded above.

	default:
		h.registry.Unicast(c, errMsg("unknown_type", "unrecognized message type "+base.Type))
	}
	return false
}

// turnOutcome translates a turn service result for the sender. Rule
// rejections get an error plus an authoritative resync; a vanished session
// closes the socket.
func (h *Handler) turnOutcome(c *Conn, err error) bool {
	if err == nil {
		return false
	}
	switch err {
	case session.ErrSessionNotFound, session.ErrSessionExpired:
		c.close(CloseSessionGone, err.Error())
		return true
	}
	h.registry.Unicast(c, errMsg(err.Error(), "turn action rejected"))
	if sync, syncErr := h.turns.SyncFor(c.sessionID); syncErr == nil {
		h.registry.Unicast(c, sync)
	}
	return false
}
