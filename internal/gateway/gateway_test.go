package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVerifier(t *testing.T) {
	v := NewVerifier("secret")

	sig := v.Sign("order_1", "pay_1")
	assert.NoError(t, v.Verify("order_1", "pay_1", sig))

	assert.ErrorIs(t, v.Verify("order_1", "pay_2", sig), ErrInvalidSignature)
	assert.ErrorIs(t, v.Verify("order_1", "pay_1", "tampered"), ErrInvalidSignature)
	assert.ErrorIs(t, NewVerifier("other").Verify("order_1", "pay_1", sig), ErrInvalidSignature)
}

func TestReceipt(t *testing.T) {
	ts := time.Unix(1700000000, 0)

	r := Receipt("lend", 42, ts)
	assert.Equal(t, "lend_42_1700000000", r)

	long := Receipt("a-very-long-receipt-prefix-for-testing", 184467440737095516, ts)
	assert.LessOrEqual(t, len(long), 40)
}
