package models

import (
	"fmt"
	"strconv"
)

// OrderStatus is the single status enumeration shared by every layer.
// The numeric codes are part of the external JSON contract.
type OrderStatus int

const (
	StatusCancelled      OrderStatus = -1
	StatusOrdering       OrderStatus = 0
	StatusPendingPayment OrderStatus = 1
	StatusWaiting        OrderStatus = 2
	StatusPreparing      OrderStatus = 3
	StatusReady          OrderStatus = 4
	StatusDelivering     OrderStatus = 5
	StatusDelivered      OrderStatus = 6
)

// AllStatuses lists every status in normal progression order.
var AllStatuses = []OrderStatus{
	StatusCancelled,
	StatusOrdering,
	StatusPendingPayment,
	StatusWaiting,
	StatusPreparing,
	StatusReady,
	StatusDelivering,
	StatusDelivered,
}

var statusNames = map[OrderStatus]string{
	StatusCancelled:      "Cancelled",
	StatusOrdering:       "Ordering",
	StatusPendingPayment: "Pending payment",
	StatusWaiting:        "Waiting",
	StatusPreparing:      "Preparing",
	StatusReady:          "Ready",
	StatusDelivering:     "Out for delivery",
	StatusDelivered:      "Delivered",
}

// StatusChoice is a read-only (code, display name) pair used to populate transition UIs.
type StatusChoice struct {
	Code int    `json:"code"`
	Name string `json:"name"`
}

// ParseStatus converts a numeric code (as sent by clients) into an OrderStatus.
func ParseStatus(code string) (OrderStatus, error) {
	n, err := strconv.Atoi(code)
	if err != nil {
		return 0, fmt.Errorf("invalid status code %q", code)
	}
	s := OrderStatus(n)
	if !s.IsValid() {
		return 0, fmt.Errorf("unknown status code %d", n)
	}
	return s, nil
}

// IsValid reports whether s is one of the known codes.
func (s OrderStatus) IsValid() bool {
	_, ok := statusNames[s]
	return ok
}

// IsTerminal reports whether no transition may leave s.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusCancelled || s == StatusDelivered
}

// IsMutable reports whether line items may be edited in s.
func (s OrderStatus) IsMutable() bool {
	return s == StatusOrdering
}

// Next returns the following status on the forward path.
func (s OrderStatus) Next() (OrderStatus, bool) {
	if s.IsTerminal() || !s.IsValid() {
		return s, false
	}
	return s + 1, true
}

func (s OrderStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("OrderStatus(%d)", int(s))
}

// Choice returns the UI descriptor for s.
func (s OrderStatus) Choice() StatusChoice {
	return StatusChoice{Code: int(s), Name: s.String()}
}

// StatusChoices returns descriptors for every known status.
func StatusChoices() []StatusChoice {
	choices := make([]StatusChoice, 0, len(AllStatuses))
	for _, s := range AllStatuses {
		choices = append(choices, s.Choice())
	}
	return choices
}
