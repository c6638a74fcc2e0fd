package bots

import "strings"

// Ambient messages reuse the same envelopes humans send so clients render
// them through one code path.

type PlayerNotification struct {
	Type           string `json:"type"`
	SessionID      string `json:"sessionId"`
	PlayerID       string `json:"playerId"`
	DisplayName    string `json:"displayName,omitempty"`
	Message        string `json:"message"`
	TargetPlayerID string `json:"targetPlayerId,omitempty"`
	Timestamp      int64  `json:"timestamp"`
	Source         string `json:"source"`
}

type GameUpdate struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	PlayerID  string `json:"playerId"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
	Source    string `json:"source"`
}

type ChaosAttack struct {
	Type           string `json:"type"`
	SessionID      string `json:"sessionId"`
	PlayerID       string `json:"playerId"`
	Effect         string `json:"effect"`
	TargetPlayerID string `json:"targetPlayerId,omitempty"`
	DurationMs     int    `json:"durationMs"`
	Timestamp      int64  `json:"timestamp"`
	Source         string `json:"source"`
}

var chatLines = []string{
	"nice roll, {target}!",
	"hey {target}, feeling lucky today?",
	"these dice are colder than my circuits",
	"{target} is on a streak, watch out",
	"I calculated the odds. You don't want to know them",
	"anyone else hear the dice whispering?",
	"good game so far, {target}",
	"my favorite number is whatever wins",
}

var announcementLines = []string{
	"the table heats up!",
	"round of applause for {target}",
	"house rules: no crying over snake eyes",
	"leaderboard positions are shifting",
	"a bold strategy is unfolding",
}

var chaosEffects = []string{
	"screen_shake",
	"dice_rain",
	"disco_lights",
	"gravity_flip",
}

func expandLine(line, targetName string) string {
	return strings.ReplaceAll(line, "{target}", targetName)
}
