package models

import "github.com/google/uuid"

// Catalog rows are owned by the catalog service; this service only reads them.

type Test struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name           string    `gorm:"not null" json:"name"`
	TestType       string    `json:"test_type"`
	Description    string    `json:"description"`
	TurnaroundTime string    `json:"turnaround_time"`
}

type Company struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name  string    `gorm:"not null" json:"name"`
	Phone string    `json:"phone"`
	Email string    `json:"email"`
}

type Location struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID uuid.UUID `gorm:"type:uuid;not null;index" json:"company_id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	ZipCode   string    `json:"zip_code"`
	Phone     string    `json:"phone"`
	Company   *Company  `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
}

// FullAddress joins the street address with city, state and zip.
func (l Location) FullAddress() string {
	out := l.Address
	if l.City != "" {
		if out != "" {
			out += ", "
		}
		out += l.City
	}
	if l.State != "" {
		out += ", " + l.State
	}
	if l.ZipCode != "" {
		out += " " + l.ZipCode
	}
	return out
}
