package ws

import (
	"encoding/json"

	"github.com/alanyoungcy/tradeleague/internal/domain"
)

// clientFrame is the single JSON envelope clients send. Type selects the
// action; the other fields are type-specific.
type clientFrame struct {
	Type    string `json:"type"`    // auth | subscribe | unsubscribe | ping
	Token   string `json:"token"`   // auth
	Channel string `json:"channel"` // subscribe, unsubscribe
}

// serverFrame is the single JSON envelope the hub sends. Unused fields are
// omitted per frame type.
type serverFrame struct {
	Type         string               `json:"type"`
	Channel      string               `json:"channel,omitempty"`
	UserID       string               `json:"user_id,omitempty"`
	Message      string               `json:"message,omitempty"`
	Data         json.RawMessage      `json:"data,omitempty"`
	Notification *domain.Notification `json:"notification,omitempty"`
}

func marshalFrame(f serverFrame) []byte {
	data, err := json.Marshal(f)
	if err != nil {
		return nil
	}
	return data
}

func errorFrame(message string) []byte {
	return marshalFrame(serverFrame{Type: "error", Message: message})
}

func broadcastFrame(channel string, data []byte) []byte {
	return marshalFrame(serverFrame{Type: "broadcast", Channel: channel, Data: data})
}

func directMessageFrame(data []byte) []byte {
	return marshalFrame(serverFrame{Type: "direct_message", Data: data})
}

func notificationFrame(n domain.Notification) []byte {
	return marshalFrame(serverFrame{Type: "notification", Notification: &n})
}
