package payments

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const receiptMaxLen = 40

// makeReceipt derives the provider receipt from the order id plus a
// base-36 timestamp, capped at the provider's 40-character limit.
func makeReceipt(orderID uuid.UUID, now time.Time) string {
	base := strings.ReplaceAll(orderID.String(), "-", "")
	suffix := "_" + strconv.FormatInt(now.UTC().Unix(), 36)

	if keep := receiptMaxLen - len(suffix); len(base) > keep {
		base = base[:keep]
	}
	receipt := base + suffix
	if len(receipt) > receiptMaxLen {
		receipt = receipt[:receiptMaxLen]
	}
	return receipt
}
