package amqp

import (
	"encoding/json"
	"time"
)

// LedgerEventMessage announces that an entry was saved and should be
// mirrored to the backup sheet. It carries only the ID and version; the
// worker fetches the full entry from the database.
type LedgerEventMessage struct {
	ID        int64     `json:"id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerEventMessage(id, version int64) *LedgerEventMessage {
	return &LedgerEventMessage{
		ID:        id,
		Version:   version,
		Timestamp: time.Now(),
	}
}

func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
