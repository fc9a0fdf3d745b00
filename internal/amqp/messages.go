package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// BudgetAlertMessage is what the engine publishes when a budget threshold is
// crossed. The notify worker resolves the user's contact details itself, so
// the message stays small and carries no PII beyond the user id.
type BudgetAlertMessage struct {
	UserID    uuid.UUID `json:"user_id"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func NewBudgetAlertMessage(userID uuid.UUID, subject, message string) *BudgetAlertMessage {
	return &BudgetAlertMessage{
		UserID:    userID,
		Subject:   subject,
		Message:   message,
		Timestamp: time.Now(),
	}
}

func (m *BudgetAlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BudgetAlertMessageFromJSON(data []byte) (*BudgetAlertMessage, error) {
	var msg BudgetAlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
