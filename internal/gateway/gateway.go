package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidSignature is returned when a payment confirmation does not
// carry a valid gateway signature.
var ErrInvalidSignature = errors.New("invalid payment signature")

// Order is a charge order issued by the external payment gateway.
// Amount is in minor currency units.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// Client creates charge orders with the external payment gateway.
// Order creation and the gateway's own signing algorithm are opaque;
// this service only consumes the order id and the later confirmation.
type Client interface {
	CreateOrder(ctx context.Context, receipt string, amountMinorUnits int64) (*Order, error)
}

// Verifier checks payment confirmations against the shared gateway secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify recomputes HMAC-SHA256(secret, orderID|paymentID) and compares
// it to the signature in constant time.
func (v *Verifier) Verify(orderID, paymentID, signature string) error {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign produces the confirmation signature for an order/payment pair.
// The real gateway does this on its side; exposed for test doubles.
func (v *Verifier) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

const maxReceiptLen = 40

// Receipt builds the bounded idempotent receipt string for an order.
// The gateway rejects receipts longer than 40 bytes.
func Receipt(prefix string, borrowRequestID uint64, ts time.Time) string {
	r := fmt.Sprintf("%s_%d_%d", prefix, borrowRequestID, ts.Unix())
	if len(r) > maxReceiptLen {
		r = r[:maxReceiptLen]
	}
	return r
}
