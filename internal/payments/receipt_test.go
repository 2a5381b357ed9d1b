package payments

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestMakeReceipt(t *testing.T) {
	orderID := uuid.MustParse("5f4c7d1e-9a2b-4c3d-8e1f-0a9b8c7d6e5f")
	now := time.Unix(1767225600, 0)

	receipt := makeReceipt(orderID, now)

	require.LessOrEqual(t, len(receipt), 40)
	require.NotContains(t, receipt, "-")
	require.True(t, strings.HasSuffix(receipt, "_"+strconv.FormatInt(now.Unix(), 36)))
	require.True(t, strings.HasPrefix(receipt, "5f4c7d1e"))
}

func TestMakeReceiptIsStablePerSecond(t *testing.T) {
	orderID := uuid.New()
	now := time.Unix(1767225600, 500_000_000)

	first := makeReceipt(orderID, now)
	second := makeReceipt(orderID, now)
	require.Equal(t, first, second)

	later := makeReceipt(orderID, now.Add(time.Second))
	require.NotEqual(t, first, later)
}
