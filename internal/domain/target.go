package domain

// PaymentTarget is a request to be paid, decoded from a shareable URI.
// Either Amount is set (fixed) or any of Min/Max (donation range).
type PaymentTarget struct {
	UID       string `json:"uid"`
	Name      string `json:"name"`
	Image     string `json:"image,omitempty"`
	Amount    *int64 `json:"amount,omitempty"`
	Min       *int64 `json:"min,omitempty"`
	Max       *int64 `json:"max,omitempty"`
	AllowTips bool   `json:"allowTips"`
	Memo      string `json:"memo,omitempty"`
}

// IsRange reports whether the target asks for a donation range rather than a fixed amount.
func (t *PaymentTarget) IsRange() bool {
	return t.Amount == nil && (t.Min != nil || t.Max != nil)
}
