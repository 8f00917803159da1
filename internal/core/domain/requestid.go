package domain

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewRequestID returns a correlation id in the form req_<epoch-ms>_<rand9>.
func NewRequestID() string {
	return newRequestID(time.Now())
}

func newRequestID(now time.Time) string {
	var b strings.Builder
	b.Grow(32)
	b.WriteString("req_")
	b.WriteString(strconv.FormatInt(now.UnixMilli(), 10))
	b.WriteByte('_')
	for range 9 {
		b.WriteByte(base36[rand.IntN(len(base36))])
	}
	return b.String()
}

// IsRequestID reports whether s has the correlation id format.
func IsRequestID(s string) bool {
	parts := strings.Split(s, "_")
	if len(parts) != 3 || parts[0] != "req" || len(parts[2]) != 9 {
		return false
	}
	if _, err := strconv.ParseInt(parts[1], 10, 64); err != nil {
		return false
	}
	for _, c := range parts[2] {
		if !strings.ContainsRune(base36, c) {
			return false
		}
	}
	return true
}
