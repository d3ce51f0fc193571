package models

import (
	"time"

	"gorm.io/gorm"
)

// Role partitions actors for authorization and transition rules.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleSystem   Role = "system"
)

// User represents a customer or staff member of the restaurant.
type User struct {
	ID        string         `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Username  string         `json:"username" gorm:"uniqueIndex;type:varchar(100)" validate:"required,min=3,max=100"`
	Email     string         `json:"email" gorm:"uniqueIndex;type:varchar(255)" validate:"required,email"`
	Password  string         `json:"password,omitempty" gorm:"type:varchar(255)" validate:"required,min=6"`
	Role      Role           `json:"role" gorm:"type:varchar(16);not null;default:customer"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// Actor is the authenticated identity invoking an operation. It is always
// passed explicitly; services never read request or session state.
type Actor struct {
	ID   string
	Role Role
}

// SystemActor is used for transitions driven by the application itself.
var SystemActor = Actor{ID: "system", Role: RoleSystem}

// IsStaff reports whether the actor acts on behalf of the restaurant.
func (a Actor) IsStaff() bool {
	return a.Role == RoleStaff
}

// Owns reports whether the actor is the customer who owns order.
func (a Actor) Owns(order *Order) bool {
	return a.Role == RoleCustomer && order != nil && order.CustomerID == a.ID
}
