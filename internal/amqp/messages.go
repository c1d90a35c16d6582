package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"boqtrack/internal/core"
)

// SyncOp tells the worker what to do with the ledger row.
type SyncOp string

const (
	OpUpsert SyncOp = "upsert"
	OpDelete SyncOp = "delete"
)

// TransactionSyncMessage carries a transaction snapshot to mirror into the
// ledger. The snapshot is taken after the store write.
type TransactionSyncMessage struct {
	MessageID   string           `json:"messageId"`
	Op          SyncOp           `json:"op"`
	Transaction core.Transaction `json:"transaction"`
	Timestamp   time.Time        `json:"timestamp"`
}

func NewTransactionSyncMessage(op SyncOp, t core.Transaction) *TransactionSyncMessage {
	return &TransactionSyncMessage{
		MessageID:   uuid.NewString(),
		Op:          op,
		Transaction: t,
		Timestamp:   time.Now(),
	}
}

func (m *TransactionSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionSyncMessageFromJSON decodes and checks a message body.
func TransactionSyncMessageFromJSON(data []byte) (*TransactionSyncMessage, error) {
	var msg TransactionSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Op {
	case OpUpsert, OpDelete:
	default:
		return nil, fmt.Errorf("unknown sync op %q", msg.Op)
	}
	if msg.Transaction.ID == "" {
		return nil, fmt.Errorf("sync message %s has no transaction id", msg.MessageID)
	}
	return &msg, nil
}
