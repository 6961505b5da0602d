package services

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var orderNumberPattern = regexp.MustCompile(`^ORD-[0-9A-Z]+-[0-9A-Z]{5}$`)

func TestGenerateOrderNumber_Format(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	n := GenerateOrderNumber(now)

	assert.Regexp(t, orderNumberPattern, n)
	assert.Contains(t, n, "ORD-LOYW3V28-")
}

func TestGenerateOrderNumber_VariesWithinSameMillisecond(t *testing.T) {
	now := time.Now()
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		seen[GenerateOrderNumber(now)] = true
	}
	assert.Greater(t, len(seen), 45)
}
