package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fulfillment-service/models"
)

const (
	metaCustomerID    = "customer_id"
	metaCustomerName  = "customer_name"
	metaCustomerEmail = "customer_email"
	metaCustomerPhone = "customer_phone"
	metaCurrency      = "currency"
	metaCartChunks    = "cart_chunks"
	metaCartSig       = "cart_sig"
	metaCartPrefix    = "cart_"

	// gateway limits: 50 keys per object, 500 characters per value
	metadataValueLimit = 500
	metadataKeyLimit   = 50
	fixedMetadataKeys  = 7
	maxCartChunks      = metadataKeyLimit - fixedMetadataKeys
)

var (
	// ErrNoCartMetadata means the payment object was not created by this service.
	ErrNoCartMetadata = errors.New("payment carries no cart metadata")
	// ErrCartSealBroken means the cart metadata failed seal verification or could not be decoded.
	ErrCartSealBroken = errors.New("cart metadata seal is broken")
	// ErrCartTooLarge means the serialized cart does not fit in gateway metadata.
	ErrCartTooLarge = errors.New("cart too large for payment metadata")
)

// sealedLine is the compact wire form of a line item; display fields stay out
// of metadata and come from the catalog when the order is read back.
type sealedLine struct {
	TestID     string          `json:"test_id"`
	LocationID string          `json:"location_id"`
	CompanyID  string          `json:"company_id"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
}

// CartSealer serializes a cart into gateway metadata with an HMAC seal and
// verifies it on the way back.
type CartSealer struct {
	secret []byte
}

func NewCartSealer(secret string) *CartSealer {
	return &CartSealer{secret: []byte(secret)}
}

// Encode returns the cart_* metadata entries for cart.
func (s *CartSealer) Encode(cart models.CartSnapshot) (map[string]string, error) {
	lines := make([]sealedLine, 0, len(cart))
	for _, l := range cart {
		lines = append(lines, sealedLine{
			TestID:     l.TestID.String(),
			LocationID: l.LocationID.String(),
			CompanyID:  l.CompanyID.String(),
			Quantity:   l.Quantity,
			Price:      l.UnitPrice,
		})
	}

	payload, err := json.Marshal(lines)
	if err != nil {
		return nil, fmt.Errorf("marshal cart: %w", err)
	}

	chunks := chunk(string(payload), metadataValueLimit)
	if len(chunks) > maxCartChunks {
		return nil, ErrCartTooLarge
	}

	md := make(map[string]string, len(chunks)+2)
	for i, c := range chunks {
		md[metaCartPrefix+strconv.Itoa(i)] = c
	}
	md[metaCartChunks] = strconv.Itoa(len(chunks))
	md[metaCartSig] = s.sign(payload)
	return md, nil
}

// Decode reassembles and verifies the cart from metadata. It returns
// ErrNoCartMetadata when there is no cart at all and ErrCartSealBroken for
// anything tampered, truncated or malformed.
func (s *CartSealer) Decode(md map[string]string) (models.CartSnapshot, []byte, error) {
	rawCount, ok := md[metaCartChunks]
	if !ok {
		return nil, nil, ErrNoCartMetadata
	}
	n, err := strconv.Atoi(rawCount)
	if err != nil || n < 1 || n > maxCartChunks {
		return nil, nil, fmt.Errorf("%w: bad chunk count %q", ErrCartSealBroken, rawCount)
	}

	var buf []byte
	for i := 0; i < n; i++ {
		part, ok := md[metaCartPrefix+strconv.Itoa(i)]
		if !ok {
			return nil, nil, fmt.Errorf("%w: missing chunk %d", ErrCartSealBroken, i)
		}
		buf = append(buf, part...)
	}

	sig, err := hex.DecodeString(md[metaCartSig])
	if err != nil || !hmac.Equal(sig, s.mac(buf)) {
		return nil, nil, fmt.Errorf("%w: signature mismatch", ErrCartSealBroken)
	}

	var lines []sealedLine
	if err := json.Unmarshal(buf, &lines); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCartSealBroken, err)
	}

	cart := make(models.CartSnapshot, 0, len(lines))
	for _, l := range lines {
		testID, err1 := uuid.Parse(l.TestID)
		locationID, err2 := uuid.Parse(l.LocationID)
		companyID, err3 := uuid.Parse(l.CompanyID)
		if err := errors.Join(err1, err2, err3); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrCartSealBroken, err)
		}
		cart = append(cart, models.LineItem{
			TestID:     testID,
			LocationID: locationID,
			CompanyID:  companyID,
			Quantity:   l.Quantity,
			UnitPrice:  l.Price,
		})
	}
	if err := cart.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCartSealBroken, err)
	}

	return cart, buf, nil
}

func (s *CartSealer) mac(payload []byte) []byte {
	h := hmac.New(sha256.New, s.secret)
	h.Write(payload)
	return h.Sum(nil)
}

func (s *CartSealer) sign(payload []byte) string {
	return hex.EncodeToString(s.mac(payload))
}

func chunk(s string, size int) []string {
	var out []string
	for len(s) > size {
		out = append(out, s[:size])
		s = s[size:]
	}
	return append(out, s)
}

// Buyer is the contact captured at checkout.
type Buyer struct {
	Name  string `validate:"required"`
	Email string `validate:"required,email"`
	Phone string `validate:"required"`
}

func buyerMetadata(b Buyer, customerID *uuid.UUID, currency string) map[string]string {
	md := map[string]string{
		metaCustomerName:  truncate(b.Name),
		metaCustomerEmail: truncate(b.Email),
		metaCustomerPhone: truncate(b.Phone),
		metaCurrency:      currency,
	}
	if customerID != nil {
		md[metaCustomerID] = customerID.String()
	}
	return md
}

func buyerFromMetadata(md map[string]string) (Buyer, *uuid.UUID) {
	b := Buyer{
		Name:  md[metaCustomerName],
		Email: md[metaCustomerEmail],
		Phone: md[metaCustomerPhone],
	}
	if id, err := uuid.Parse(md[metaCustomerID]); err == nil {
		return b, &id
	}
	return b, nil
}

// truncate cuts v to the metadata byte limit without splitting a rune.
func truncate(v string) string {
	if len(v) <= metadataValueLimit {
		return v
	}
	cut := metadataValueLimit
	for cut > 0 && !utf8.RuneStart(v[cut]) {
		cut--
	}
	return v[:cut]
}
