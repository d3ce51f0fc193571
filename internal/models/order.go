package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices are rendered as JSON numbers for the web client.
	decimal.MarshalJSONWithoutQuotes = true
}

// DeliveryType selects how the customer receives the order.
type DeliveryType string

const (
	DeliveryPickup   DeliveryType = "pickup"
	DeliveryDelivery DeliveryType = "delivery"
)

// PaymentMethod is the method chosen when paying for an order.
type PaymentMethod string

const (
	PaymentBalance PaymentMethod = "balance"
	PaymentCard    PaymentMethod = "card"
	PaymentCash    PaymentMethod = "cash"
	PaymentPix     PaymentMethod = "pix"
)

// IsValid reports whether m is an accepted payment method.
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentBalance, PaymentCard, PaymentCash, PaymentPix:
		return true
	}
	return false
}

// MaxLineQuantity caps the units on one line.
const MaxLineQuantity = 99

// LineItem is one product line within an order. UnitPrice is frozen when the
// product is first added.
type LineItem struct {
	ID                  uint            `json:"id" gorm:"primaryKey"`
	OrderID             string          `json:"orderId" gorm:"type:varchar(36);not null;uniqueIndex:idx_line_items_order_product"`
	ProductID           string          `json:"productId" gorm:"type:varchar(36);not null;uniqueIndex:idx_line_items_order_product"`
	ProductName         string          `json:"productName" gorm:"type:varchar(100)"`
	UnitPrice           decimal.Decimal `json:"unitPrice" gorm:"type:decimal(10,2);not null"`
	Quantity            int             `json:"quantity" gorm:"not null"`
	SpecialInstructions string          `json:"specialInstructions" gorm:"type:text"`
	Subtotal            decimal.Decimal `json:"subtotal" gorm:"type:decimal(10,2);not null"`
	PrepMinutes         int             `json:"prepMinutes" gorm:"not null;default:0"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

// Order is one customer's ordering session aggregate.
type Order struct {
	ID                  string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CustomerID          string          `json:"customerId" gorm:"type:varchar(36);not null;index"`
	Status              OrderStatus     `json:"status" gorm:"not null;index"`
	Items               []LineItem      `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	DeliveryType        DeliveryType    `json:"deliveryType" gorm:"type:varchar(16);not null"`
	DeliveryAddress     string          `json:"deliveryAddress" gorm:"type:text"`
	Notes               string          `json:"notes" gorm:"type:text"`
	PaymentMethod       PaymentMethod   `json:"paymentMethod,omitempty" gorm:"type:varchar(16)"`
	DeliveryFee         decimal.Decimal `json:"deliveryFee" gorm:"type:decimal(10,2);not null"`
	TotalPrice          decimal.Decimal `json:"totalPrice" gorm:"type:decimal(10,2);not null"`
	EstimatedDeliveryAt *time.Time      `json:"estimatedDeliveryAt,omitempty"`
	Version             int             `json:"version" gorm:"not null"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

// FindItem returns the line for productID, or nil.
func (o *Order) FindItem(productID string) *LineItem {
	for i := range o.Items {
		if o.Items[i].ProductID == productID {
			return &o.Items[i]
		}
	}
	return nil
}

// RemoveItem drops the line for productID and reports whether it existed.
func (o *Order) RemoveItem(productID string) bool {
	for i := range o.Items {
		if o.Items[i].ProductID == productID {
			o.Items = append(o.Items[:i], o.Items[i+1:]...)
			return true
		}
	}
	return false
}

// ItemCount is the total number of units across all lines.
func (o *Order) ItemCount() int {
	n := 0
	for _, item := range o.Items {
		n += item.Quantity
	}
	return n
}

// PrepMinutes sums the preparation time of every unit in the order.
func (o *Order) PrepMinutes() int {
	n := 0
	for _, item := range o.Items {
		n += item.PrepMinutes * item.Quantity
	}
	return n
}

// AverageItemValue is the item subtotal divided by the number of units, or
// zero for an empty order. The delivery fee is not included.
func (o *Order) AverageItemValue() decimal.Decimal {
	count := o.ItemCount()
	if count == 0 {
		return decimal.Zero
	}
	return o.TotalPrice.Sub(o.DeliveryFee).DivRound(decimal.NewFromInt(int64(count)), 2)
}

// Recalculate refreshes every subtotal and the order total. deliveryFee is
// the configured fee, charged only for delivery orders.
func (o *Order) Recalculate(deliveryFee decimal.Decimal) {
	total := decimal.Zero
	for i := range o.Items {
		o.Items[i].Subtotal = o.Items[i].UnitPrice.Mul(decimal.NewFromInt(int64(o.Items[i].Quantity)))
		total = total.Add(o.Items[i].Subtotal)
	}
	if o.DeliveryType == DeliveryDelivery {
		o.DeliveryFee = deliveryFee
	} else {
		o.DeliveryFee = decimal.Zero
	}
	o.TotalPrice = total.Add(o.DeliveryFee)
}

// StatusChange is an append-only record of one status transition.
// FromStatus is nil for the creation record.
type StatusChange struct {
	ID         uint         `json:"id" gorm:"primaryKey"`
	OrderID    string       `json:"orderId" gorm:"type:varchar(36);not null;index"`
	FromStatus *OrderStatus `json:"fromStatus"`
	ToStatus   OrderStatus  `json:"toStatus" gorm:"not null"`
	ActorID    string       `json:"actorId" gorm:"type:varchar(36)"`
	ActorRole  Role         `json:"actorRole" gorm:"type:varchar(16)"`
	Note       string       `json:"note" gorm:"type:text"`
	CreatedAt  time.Time    `json:"createdAt"`
}
