// Package payment builds, encodes and signs payment intents.
package payment

import (
	"bytes"
	"encoding/json"

	"github.com/mrz1836/paytoken/internal/domain"
)

// canonicalIntent fixes the field order of the signed bytes. Memo is always
// present so a missing memo and an empty memo encode identically.
type canonicalIntent struct {
	SenderID    string `json:"senderId"`
	SenderName  string `json:"senderName"`
	RecipientID string `json:"recipientId"`
	Amount      int64  `json:"amount"`
	Timestamp   int64  `json:"timestamp"`
	Nonce       string `json:"nonce"`
	Memo        string `json:"memo"`
}

// Canonicalize returns the single byte encoding of intent that signer and
// verifier agree on: compact JSON in the order senderId, senderName,
// recipientId, amount, timestamp, nonce, memo, with no HTML escaping.
func Canonicalize(intent domain.PaymentIntent) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	// Encoding a struct of strings and integers cannot fail.
	_ = enc.Encode(canonicalIntent{
		SenderID:    intent.SenderID,
		SenderName:  intent.SenderName,
		RecipientID: intent.RecipientID,
		Amount:      intent.Amount,
		Timestamp:   intent.TimestampMs,
		Nonce:       intent.Nonce,
		Memo:        intent.Memo,
	})

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
}
