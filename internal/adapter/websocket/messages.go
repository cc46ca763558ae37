package websocket

import (
	"encoding/json"
	"fmt"

	"github.com/pscheid92/insightpulse/internal/domain"
)

const (
	EventJoinInsights  = "join_insights"
	EventJoined        = "joined"
	EventInsightUpdate = "insight_update"
	EventError         = "error"
)

// Token stays raw so that a join with a non-string token can still be
// answered instead of failing the whole frame.
type inboundMessage struct {
	Event string          `json:"event"`
	Token json.RawMessage `json:"token"`
}

// decodeToken returns "" for an absent or null token.
func decodeToken(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var token string
	if err := json.Unmarshal(raw, &token); err != nil {
		return "", fmt.Errorf("%w: token is not a string", domain.ErrTokenInvalid)
	}
	return token, nil
}

type insightUpdateMessage struct {
	Event string `json:"event"`
	domain.InsightChange
}

type joinedMessage struct {
	Event    string `json:"event"`
	Industry string `json:"industry"`
}

type errorMessage struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

func encodeInsightUpdate(change *domain.InsightChange) ([]byte, error) {
	return json.Marshal(insightUpdateMessage{Event: EventInsightUpdate, InsightChange: *change})
}

func encodeJoined(industry string) []byte {
	data, _ := json.Marshal(joinedMessage{Event: EventJoined, Industry: industry})
	return data
}

func encodeError(message string) []byte {
	data, _ := json.Marshal(errorMessage{Event: EventError, Message: message})
	return data
}
