package domain

// PaymentIntent is an immutable statement that SenderID pays Amount to RecipientID.
// Field tags are the transport names shared with other implementations.
type PaymentIntent struct {
	SenderID    string `json:"senderId"`
	SenderName  string `json:"senderName"`
	RecipientID string `json:"recipientId"`
	Amount      int64  `json:"amount"`
	TimestampMs int64  `json:"timestamp"`
	Nonce       string `json:"nonce"`
	Memo        string `json:"memo,omitempty"`
}

// SignedPaymentToken is a portable bearer token: the intent, the sender's
// signature over its canonical encoding and the sender's certificate.
type SignedPaymentToken struct {
	PaymentIntent

	// Signature is the hex-encoded signature over the canonical intent bytes.
	Signature string `json:"signature"`

	// Certificate is the sender's authority-issued certificate.
	Certificate string `json:"certificate"`
}

// VerifiedIntent is the result of a successful offline verification.
type VerifiedIntent struct {
	// Intent holds the verified payment fields.
	Intent PaymentIntent

	// HolderName is the sender's display name as bound by the certificate.
	HolderName string

	// PublicKey is the certified sender public key in hex.
	PublicKey string

	// Token is the encoded token the intent was verified from.
	Token string
}

// AmountBounds is an inclusive amount range. A range with Min > Max admits nothing.
type AmountBounds struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

// Contains reports whether amount lies inside the bounds.
func (b AmountBounds) Contains(amount int64) bool {
	return amount >= b.Min && amount <= b.Max
}

// Empty reports whether no amount satisfies the bounds.
func (b AmountBounds) Empty() bool {
	return b.Min > b.Max
}

// TransferRequest is a direct debit/credit submitted to the ledger.
type TransferRequest struct {
	FromID      string `json:"fromId"`
	ToID        string `json:"toId"`
	Amount      int64  `json:"amount"`
	Memo        string `json:"memo,omitempty"`
	Nonce       string `json:"nonce"`
	TimestampMs int64  `json:"timestamp"`

	// Token is the signed token authorizing the transfer.
	Token string `json:"token"`
}
