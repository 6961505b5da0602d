package notification

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatPhone(t *testing.T) {
	assert.Equal(t, "(555) 123-4567", FormatPhone("5551234567"))
	assert.Equal(t, "(555) 123-4567", FormatPhone("+1 555.123.4567"))
	assert.Equal(t, "555-1234", FormatPhone("555-1234"))
	assert.Equal(t, "Contact for details", FormatPhone(""))
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$12.50", FormatMoney(decimal.RequireFromString("12.5"), "usd"))
	assert.Equal(t, "CAD 3.00", FormatMoney(decimal.NewFromInt(3), "cad"))
}

func TestCustomerReceipt(t *testing.T) {
	r, err := NewRenderer("Marketplace")
	require.NoError(t, err)

	subject, body, err := r.CustomerReceipt(sampleOrder())
	require.NoError(t, err)

	assert.Equal(t, "Order Confirmation - ORD-TEST-00001", subject)
	assert.Contains(t, body, "Thank you, Dana Buyer!")
	assert.Contains(t, body, "Beta Diagnostics")
	assert.Contains(t, body, "(555) 333-4444")
	assert.Contains(t, body, "1 Main St, Austin, TX 78701")
	assert.Contains(t, body, "(2 x $25.00)")
	assert.Contains(t, body, "$120.00")
}

func TestOperatorAlert(t *testing.T) {
	r, err := NewRenderer("Marketplace")
	require.NoError(t, err)

	subject, body, err := r.OperatorAlert(sampleOrder())
	require.NoError(t, err)

	assert.Equal(t, "New order ORD-TEST-00001 ($120.00)", subject)
	assert.Contains(t, body, "dana@example.com")
	assert.Contains(t, body, "<td>3</td>")
	assert.Contains(t, body, "<td>2</td>")
}
