// Package notify turns an alert decision into user-visible output: a
// persisted in-app notification and a best-effort out-of-band message.
package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"budgetwise/internal/amqp"
	"budgetwise/internal/core"
	"budgetwise/internal/log"
	"budgetwise/internal/storage"
)

// Dispatcher persists in-app notifications and forwards alerts to the notify
// worker over AMQP. The notification row is the durable record of the alert;
// the AMQP leg is best effort and its failures are logged, never returned.
type Dispatcher struct {
	storage *storage.SQLiteRepository
	amqp    *amqp.Client // nil disables the out-of-band channel
	logger  *log.Logger
}

func NewDispatcher(storage *storage.SQLiteRepository, amqpClient *amqp.Client, logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		storage: storage,
		amqp:    amqpClient,
		logger:  logger.WithComponent(log.ComponentNotify),
	}
}

// DispatchBudgetAlert saves the in-app notification, then publishes the
// alert for external delivery. Only the save can fail the call.
func (d *Dispatcher) DispatchBudgetAlert(ctx context.Context, userID uuid.UUID, subject, message string) error {
	notification := core.Notification{
		ID:      uuid.New(),
		UserID:  userID,
		Message: message,
	}
	if err := d.storage.CreateNotification(ctx, notification); err != nil {
		return fmt.Errorf("save notification: %w", err)
	}

	if d.amqp == nil {
		d.logger.DebugContext(ctx, "AMQP disabled, alert stays in-app only",
			log.FieldUserID, userID)
		return nil
	}

	if err := d.amqp.PublishBudgetAlert(ctx, amqp.NewBudgetAlertMessage(userID, subject, message)); err != nil {
		d.logger.ErrorContext(ctx, "failed to publish alert for external delivery",
			log.FieldUserID, userID,
			log.FieldError, err)
	}

	return nil
}
