// Package xid generates short prefixed identifiers for new rows.
// Seeded demo data uses hand-written ids of the same shape
// ("prd-usb32"), so everything downstream treats ids as opaque strings.
package xid

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"
)

// New returns an id like vta-mc81k2ed-9f2c41aa8b.
func New(prefix string) string {
	stamp := strconv.FormatInt(time.Now().UnixMilli(), 36)
	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		return prefix + "-" + stamp
	}
	return prefix + "-" + stamp + "-" + hex.EncodeToString(buf)
}
