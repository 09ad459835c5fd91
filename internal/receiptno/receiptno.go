// Package receiptno generates receipt numbers that keep the human-readable
// RCP+timestamp convention while staying unique across checkouts committed
// within the same clock second.
package receiptno

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"
)

var counter atomic.Uint64

// New returns a receipt number like "RCP20260830154212-0007a3f29c1b".
// The timestamp gives operators a readable ordering; the process-wide counter
// plus random entropy guarantees uniqueness even inside one second.
func New() string {
	seq := counter.Add(1)
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("RCP%s-%04X", time.Now().UTC().Format("20060102150405"), seq&0xFFFF)
	}
	return fmt.Sprintf("RCP%s-%04X%s", time.Now().UTC().Format("20060102150405"), seq&0xFFFF, hex.EncodeToString(buf))
}
