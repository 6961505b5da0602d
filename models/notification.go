package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RecipientCustomer = "customer"
	RecipientOperator = "operator"
	RecipientProvider = "provider"

	NotificationSent    = "sent"
	NotificationFailed  = "failed"
	NotificationSkipped = "skipped"
)

// RecipientClasses lists every class in dispatch order.
var RecipientClasses = []string{RecipientCustomer, RecipientOperator, RecipientProvider}

// IsRecipientClass reports whether s names a known recipient class.
func IsRecipientClass(s string) bool {
	for _, c := range RecipientClasses {
		if c == s {
			return true
		}
	}
	return false
}

type NotificationRecord struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"order_id"`
	RecipientClass string     `gorm:"type:varchar(20);not null" json:"recipient_class"`
	CompanyID      *uuid.UUID `gorm:"type:uuid" json:"company_id,omitempty"`
	Recipient      string     `json:"recipient"`
	Subject        string     `json:"subject"`
	Status         string     `gorm:"type:varchar(20);not null" json:"status"`
	Attempts       int        `json:"attempts"`
	Error          string     `json:"error,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (n *NotificationRecord) BeforeCreate(*gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
