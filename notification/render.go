package notification

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fulfillment-service/models"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	tmplCustomerReceipt = "customer_receipt.html"
	tmplOperatorAlert   = "operator_alert.html"
	tmplProviderOrder   = "provider_order.html"
)

type Renderer struct {
	templates *template.Template
	brand     string
}

func NewRenderer(brand string) (*Renderer, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"phone": FormatPhone,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{templates: tmpl, brand: brand}, nil
}

type lineView struct {
	TestName       string
	Description    string
	TurnaroundTime string
	CompanyName    string
	LocationName   string
	Address        string
	Phone          string
	Email          string
	Quantity       int
	UnitPrice      string
	LineTotal      string
}

type receiptView struct {
	Brand        string
	CustomerName string
	OrderNumber  string
	OrderID      string
	Lines        []lineView
	Total        string
}

type operatorView struct {
	Brand         string
	OrderNumber   string
	OrderID       string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Total         string
	LineCount     int
	ProviderCount int
	CreatedAt     string
}

type providerView struct {
	Brand         string
	CompanyName   string
	OrderNumber   string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Lines         []lineView
	Subtotal      string
}

func (r *Renderer) CustomerReceipt(order *models.Order) (string, string, error) {
	view := receiptView{
		Brand:        r.brand,
		CustomerName: order.CustomerName,
		OrderNumber:  order.OrderNumber,
		OrderID:      order.ID.String(),
		Total:        FormatMoney(order.TotalAmount, order.Currency),
	}
	for _, it := range order.OrderItems {
		view.Lines = append(view.Lines, newLineView(it, order.Currency))
	}
	body, err := r.execute(tmplCustomerReceipt, view)
	return "Order Confirmation - " + order.OrderNumber, body, err
}

func (r *Renderer) OperatorAlert(order *models.Order) (string, string, error) {
	providers := map[uuid.UUID]bool{}
	for _, it := range order.OrderItems {
		providers[it.CompanyID] = true
	}
	view := operatorView{
		Brand:         r.brand,
		OrderNumber:   order.OrderNumber,
		OrderID:       order.ID.String(),
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		CustomerPhone: order.CustomerPhone,
		Total:         FormatMoney(order.TotalAmount, order.Currency),
		LineCount:     len(order.OrderItems),
		ProviderCount: len(providers),
		CreatedAt:     order.CreatedAt.UTC().Format(time.RFC1123),
	}
	body, err := r.execute(tmplOperatorAlert, view)
	return fmt.Sprintf("New order %s (%s)", order.OrderNumber, view.Total), body, err
}

// ProviderOrder renders the email for one provider: only its own lines and
// its subtotal, plus the buyer's contact details.
func (r *Renderer) ProviderOrder(order *models.Order, company *models.Company, items []models.OrderItem) (string, string, error) {
	view := providerView{
		Brand:         r.brand,
		CompanyName:   company.Name,
		OrderNumber:   order.OrderNumber,
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		CustomerPhone: order.CustomerPhone,
	}
	subtotal := decimal.Zero
	for _, it := range items {
		view.Lines = append(view.Lines, newLineView(it, order.Currency))
		subtotal = subtotal.Add(it.LineTotal())
	}
	view.Subtotal = FormatMoney(subtotal, order.Currency)

	body, err := r.execute(tmplProviderOrder, view)
	return "New Order Received - " + order.OrderNumber, body, err
}

func (r *Renderer) execute(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("template render failed: %w", err)
	}
	return buf.String(), nil
}

func newLineView(it models.OrderItem, currency string) lineView {
	v := lineView{
		TestName:  "Diagnostic test",
		Quantity:  it.Quantity,
		UnitPrice: FormatMoney(it.Price, currency),
		LineTotal: FormatMoney(it.LineTotal(), currency),
	}
	if it.Test != nil {
		v.TestName = it.Test.Name
		v.Description = it.Test.Description
		v.TurnaroundTime = it.Test.TurnaroundTime
	}
	if it.Company != nil {
		v.CompanyName = it.Company.Name
		v.Phone = it.Company.Phone
		v.Email = it.Company.Email
	}
	if it.Location != nil {
		v.LocationName = it.Location.Name
		v.Address = it.Location.FullAddress()
		if it.Location.Phone != "" {
			v.Phone = it.Location.Phone
		}
	}
	return v
}

// FormatPhone renders 10-digit numbers (or 11 digits with a leading 1) as
// (###) ###-####. Anything else is returned unchanged.
func FormatPhone(phone string) string {
	if phone == "" {
		return "Contact for details"
	}
	var digits strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) == 11 && d[0] == '1' {
		d = d[1:]
	} else if len(d) != 10 {
		return phone
	}
	return fmt.Sprintf("(%s) %s-%s", d[:3], d[3:6], d[6:])
}

// FormatMoney renders an amount with a symbol for common currencies and the
// ISO code otherwise.
func FormatMoney(amount decimal.Decimal, currency string) string {
	switch strings.ToLower(currency) {
	case "", "usd":
		return "$" + amount.StringFixed(2)
	case "eur":
		return "€" + amount.StringFixed(2)
	case "gbp":
		return "£" + amount.StringFixed(2)
	}
	return strings.ToUpper(currency) + " " + amount.StringFixed(2)
}
