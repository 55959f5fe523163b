package service

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrderNumber_Format(t *testing.T) {
	now := time.Date(2026, 1, 14, 0, 0, 1, 500*int(time.Millisecond), time.UTC)

	got := NewOrderNumber(now)

	m := regexp.MustCompile(`^ORD-(\d{8})-([0-9A-Z]+)-([0-9A-F]{6})$`).FindStringSubmatch(got)
	require.NotNil(t, m, got)
	assert.Equal(t, "20260114", m[1])
	assert.Equal(t, "15O", m[2]) // 1500 in base 36
}

func TestNewOrderNumber_UsesUTCDate(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	now := time.Date(2026, 1, 15, 5, 0, 0, 0, loc)

	assert.Contains(t, NewOrderNumber(now), "ORD-20260114-")
}

func TestNewOrderNumber_Distinct(t *testing.T) {
	now := time.Now()
	seen := make(map[string]struct{}, 200)
	for i := 0; i < 200; i++ {
		seen[NewOrderNumber(now)] = struct{}{}
	}
	assert.Greater(t, len(seen), 190)
}
