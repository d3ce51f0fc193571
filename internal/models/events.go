package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RoutingKeyStatusChanged is the routing key of StatusChangedEvent messages.
const RoutingKeyStatusChanged = "order.status_changed"

// StatusChangedEvent is published after every successful status transition.
type StatusChangedEvent struct {
	OrderID      string          `json:"orderId"`
	CustomerID   string          `json:"customerId"`
	From         *OrderStatus    `json:"from"`
	To           OrderStatus     `json:"to"`
	ActorRole    Role            `json:"actorRole"`
	Note         string          `json:"note,omitempty"`
	DeliveryType DeliveryType    `json:"deliveryType"`
	ItemCount    int             `json:"itemCount"`
	TotalPrice   decimal.Decimal `json:"totalPrice"`
	OccurredAt   time.Time       `json:"occurredAt"`
}
