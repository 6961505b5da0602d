package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"

	ResultPending   = "pending"
	ResultCompleted = "completed"
	ResultFailed    = "failed"
)

type Order struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	OrderNumber      string          `gorm:"uniqueIndex;not null" json:"order_number"`
	CustomerID       *uuid.UUID      `gorm:"type:uuid;index" json:"customer_id,omitempty"`
	CustomerName     string          `gorm:"not null" json:"customer_name"`
	CustomerEmail    string          `gorm:"not null" json:"customer_email"`
	CustomerPhone    string          `json:"customer_phone"`
	TotalAmount      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	Currency         string          `gorm:"type:varchar(3);not null" json:"currency"`
	PaymentStatus    string          `gorm:"type:varchar(20);not null;default:'pending'" json:"payment_status"`
	GatewayReference string          `gorm:"uniqueIndex;not null" json:"gateway_reference"`
	PaymentIntentID  *string         `gorm:"index" json:"payment_intent_id,omitempty"`
	CartSnapshot     datatypes.JSON  `json:"-"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	OrderItems       []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	TestResults      []TestResult    `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"test_results,omitempty"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

type OrderItem struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	TestID     uuid.UUID       `gorm:"type:uuid;not null" json:"test_id"`
	LocationID uuid.UUID       `gorm:"type:uuid;not null" json:"location_id"`
	CompanyID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"company_id"`
	Quantity   int             `gorm:"not null;check:quantity >= 1" json:"quantity"`
	Price      decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"price"`
	Test       *Test           `gorm:"foreignKey:TestID" json:"test,omitempty"`
	Location   *Location       `gorm:"foreignKey:LocationID" json:"location,omitempty"`
	Company    *Company        `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// LineTotal is price times quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type TestResult struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"order_id"`
	CustomerID    *uuid.UUID `gorm:"type:uuid;index" json:"customer_id,omitempty"`
	TestID        uuid.UUID  `gorm:"type:uuid;not null" json:"test_id"`
	LocationID    uuid.UUID  `gorm:"type:uuid;not null" json:"location_id"`
	CompanyID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"company_id"`
	ResultStatus  string     `gorm:"type:varchar(20);not null;default:'pending'" json:"result_status"`
	ResultFileRef *string    `json:"result_file_ref,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	Test          *Test      `gorm:"foreignKey:TestID" json:"test,omitempty"`
	Location      *Location  `gorm:"foreignKey:LocationID" json:"location,omitempty"`
	Company       *Company   `gorm:"foreignKey:CompanyID" json:"company,omitempty"`

	// OrderNumber is filled in by customer result listings.
	OrderNumber string `gorm:"-" json:"order_number,omitempty"`
}

func (r *TestResult) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
