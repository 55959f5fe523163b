package service

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewOrderNumber builds ORD-<yyyymmdd>-<base36 ms of day>-<6 hex>, e.g.
// ORD-20260114-1A2B3C-9F01AB. Uniqueness is enforced by the orders table.
func NewOrderNumber(now time.Time) string {
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	ms := now.Sub(midnight).Milliseconds()

	id := uuid.New()
	suffix := hex.EncodeToString(id[:3])

	return "ORD-" + now.Format("20060102") + "-" +
		strings.ToUpper(strconv.FormatInt(ms, 36)) + "-" +
		strings.ToUpper(suffix)
}
