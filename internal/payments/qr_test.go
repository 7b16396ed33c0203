package payments

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPNGEncoder(t *testing.T) {
	enc := NewPNGEncoder(0)

	ref := enc.Reference("res-1", "pay-1", decimal.RequireFromString("1575"))
	assert.Equal(t, "RENT-PAY:res-1:1575.00:pay-1", ref)

	png, err := enc.Encode(ref)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}
