package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LedgerChangedMessage announces that the ledger reached a new revision.
// It carries no ledger data; consumers read the latest snapshot from storage.
type LedgerChangedMessage struct {
	MessageID    string    `json:"messageId"`
	Source       string    `json:"source"`
	Revision     int64     `json:"revision"`
	ActivityType string    `json:"activityType"`
	Description  string    `json:"description"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewLedgerChangedMessage(source string, revision int64, activityType, description string) *LedgerChangedMessage {
	return &LedgerChangedMessage{
		MessageID:    uuid.NewString(),
		Source:       source,
		Revision:     revision,
		ActivityType: activityType,
		Description:  description,
		Timestamp:    time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangedMessageFromJSON decodes a message and rejects bodies that
// lack a source or a revision.
func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Source == "" || msg.Revision <= 0 {
		return nil, fmt.Errorf("incomplete ledger message: source=%q revision=%d", msg.Source, msg.Revision)
	}
	return &msg, nil
}
