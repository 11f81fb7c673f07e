package amqp

import (
	"encoding/json"
	"time"
)

// LedgerEventMessage announces one committed ledger transaction. It is
// intentionally small: the worker fetches the full row from storage, so a
// stale message can never overwrite newer data.
type LedgerEventMessage struct {
	TransactionID string    `json:"transaction_id"`
	AccountID     string    `json:"account_id"`
	Direction     string    `json:"direction"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewLedgerEventMessage(transactionID, accountID, direction string) *LedgerEventMessage {
	return &LedgerEventMessage{
		TransactionID: transactionID,
		AccountID:     accountID,
		Direction:     direction,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventMessageFromJSON creates a message from JSON bytes
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
