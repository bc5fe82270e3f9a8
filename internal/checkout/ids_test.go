package checkout

import (
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomIDs_Format(t *testing.T) {
	at := time.Date(2026, 1, 5, 23, 59, 0, 0, time.UTC)
	var ids RandomIDs

	orderID, err := ids.OrderID(at)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^ORD-20260105-[0-9A-Z]{5}$`), orderID)

	shippingID, err := ids.ShippingID(at)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^SHP-20260105-[0-9A-Z]{5}$`), shippingID)

	lineID, err := uuid.Parse(ids.LineID())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), lineID.Version())
}

func TestRandomIDs_Vary(t *testing.T) {
	var ids RandomIDs
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id, err := ids.OrderID(time.Now())
		require.NoError(t, err)
		seen[id] = true
	}
	assert.Greater(t, len(seen), 45)
}
