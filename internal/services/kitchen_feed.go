package services

import (
	"encoding/json"
	"fmt"
	"log"

	"bistro/internal/models"
)

// KitchenFeed turns status change events into kitchen ticket log lines.
type KitchenFeed struct {
	logf func(format string, args ...interface{})
}

// NewKitchenFeed creates a KitchenFeed that writes to the standard logger.
func NewKitchenFeed() *KitchenFeed {
	return &KitchenFeed{logf: log.Printf}
}

// Handle processes one message body. Statuses the kitchen does not act on are ignored.
func (k *KitchenFeed) Handle(body []byte) error {
	var event models.StatusChangedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("failed to decode status change event: %w", err)
	}

	switch event.To {
	case models.StatusWaiting:
		k.logf("[kitchen] NEW TICKET order=%s items=%d type=%s total=%s", event.OrderID, event.ItemCount, event.DeliveryType, event.TotalPrice.StringFixed(2))
	case models.StatusPreparing:
		k.logf("[kitchen] PREPARING order=%s", event.OrderID)
	case models.StatusReady:
		k.logf("[kitchen] READY order=%s type=%s", event.OrderID, event.DeliveryType)
	}
	return nil
}
