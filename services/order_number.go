package services

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const base36Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// GenerateOrderNumber returns "ORD-<base36 unix millis>-<5 random base36 chars>".
// Uniqueness is enforced by the database; callers retry on collision.
func GenerateOrderNumber(now time.Time) string {
	ts := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))

	suffix := make([]byte, 5)
	max := big.NewInt(int64(len(base36Alphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			n = big.NewInt(time.Now().UnixNano() % int64(len(base36Alphabet)))
		}
		suffix[i] = base36Alphabet[n.Int64()]
	}

	return "ORD-" + ts + "-" + string(suffix)
}
