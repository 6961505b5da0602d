package services

import (
	"strconv"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fulfillment-service/models"
)

func testCart(lines int) models.CartSnapshot {
	cart := make(models.CartSnapshot, 0, lines)
	for i := 0; i < lines; i++ {
		cart = append(cart, models.LineItem{
			TestID:     uuid.New(),
			LocationID: uuid.New(),
			CompanyID:  uuid.New(),
			Quantity:   1 + i%3,
			UnitPrice:  decimal.RequireFromString("49.99"),
		})
	}
	return cart
}

func TestCartSealer_RoundTrip(t *testing.T) {
	sealer := NewCartSealer("seal-secret")
	cart := testCart(2)

	md, err := sealer.Encode(cart)
	require.NoError(t, err)
	assert.Equal(t, "1", md[metaCartChunks])
	assert.NotEmpty(t, md[metaCartSig])

	got, raw, err := sealer.Decode(md)
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
	require.Len(t, got, 2)
	assert.Equal(t, cart[0].TestID, got[0].TestID)
	assert.Equal(t, cart[1].Quantity, got[1].Quantity)
	assert.True(t, cart.Total().Equal(got.Total()))
}

func TestCartSealer_ChunksLargeCarts(t *testing.T) {
	sealer := NewCartSealer("seal-secret")
	cart := testCart(20)

	md, err := sealer.Encode(cart)
	require.NoError(t, err)

	n, err := strconv.Atoi(md[metaCartChunks])
	require.NoError(t, err)
	assert.Greater(t, n, 1)
	for i := 0; i < n; i++ {
		assert.LessOrEqual(t, len(md[metaCartPrefix+strconv.Itoa(i)]), metadataValueLimit)
	}

	got, _, err := sealer.Decode(md)
	require.NoError(t, err)
	assert.Len(t, got, 20)
}

func TestCartSealer_DetectsTampering(t *testing.T) {
	sealer := NewCartSealer("seal-secret")
	md, err := sealer.Encode(testCart(1))
	require.NoError(t, err)

	md["cart_0"] = strings.Replace(md["cart_0"], "49.99", "0.01", 1)

	_, _, err = sealer.Decode(md)
	assert.ErrorIs(t, err, ErrCartSealBroken)
}

func TestCartSealer_RejectsOtherSecret(t *testing.T) {
	md, err := NewCartSealer("one").Encode(testCart(1))
	require.NoError(t, err)

	_, _, err = NewCartSealer("two").Decode(md)
	assert.ErrorIs(t, err, ErrCartSealBroken)
}

func TestCartSealer_MissingChunk(t *testing.T) {
	sealer := NewCartSealer("seal-secret")
	md, err := sealer.Encode(testCart(20))
	require.NoError(t, err)

	delete(md, "cart_1")

	_, _, err = sealer.Decode(md)
	assert.ErrorIs(t, err, ErrCartSealBroken)
}

func TestCartSealer_NoMetadata(t *testing.T) {
	_, _, err := NewCartSealer("seal-secret").Decode(map[string]string{"customer_email": "a@b.co"})
	assert.ErrorIs(t, err, ErrNoCartMetadata)
}

func TestBuyerMetadata_TruncatesLongValues(t *testing.T) {
	id := uuid.New()
	md := buyerMetadata(Buyer{Name: strings.Repeat("n", 600), Email: "a@b.co", Phone: "555"}, &id, "usd")

	assert.Len(t, md[metaCustomerName], metadataValueLimit)
	assert.Equal(t, id.String(), md[metaCustomerID])

	b, gotID := buyerFromMetadata(md)
	assert.Equal(t, "a@b.co", b.Email)
	require.NotNil(t, gotID)
	assert.Equal(t, id, *gotID)
}

func TestBuyerMetadata_TruncatesOnRuneBoundary(t *testing.T) {
	// 1 + 300*2 bytes; byte 500 falls inside an "é"
	name := "a" + strings.Repeat("é", 300)
	md := buyerMetadata(Buyer{Name: name, Email: "a@b.co", Phone: "555"}, nil, "usd")

	got := md[metaCustomerName]
	assert.True(t, utf8.ValidString(got))
	assert.Len(t, got, metadataValueLimit-1)
	assert.True(t, strings.HasPrefix(name, got))

	assert.Equal(t, "a@b.co", truncate("a@b.co"))
}

func TestBuyerFromMetadata_GuestCheckout(t *testing.T) {
	_, id := buyerFromMetadata(map[string]string{metaCustomerEmail: "guest@example.com"})
	assert.Nil(t, id)
}
