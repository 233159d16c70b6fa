package payreq

import (
	"fmt"
	"math"

	"github.com/mrz1836/paytoken/internal/domain"
	payerrors "github.com/mrz1836/paytoken/internal/errors"
)

// Tip returns floor(base * percent / 100) and base plus that tip.
func Tip(base, percent int64) (tip, total int64, err error) {
	if base < 0 || percent < 0 {
		return 0, 0, fmt.Errorf("%w: negative base or tip percent", payerrors.ErrInvalidPaymentRequest)
	}
	if percent != 0 && base > math.MaxInt64/percent {
		return 0, 0, fmt.Errorf("%w: tip overflows", payerrors.ErrInvalidPaymentRequest)
	}
	tip = base * percent / 100
	if base > math.MaxInt64-tip {
		return 0, 0, fmt.Errorf("%w: total overflows", payerrors.ErrInvalidPaymentRequest)
	}
	return tip, base + tip, nil
}

// Bounds returns the amounts a payer holding balance may choose for target.
// A range admits [max(1, min), min(max, balance)]; an open side defaults to
// 1 or balance. A fixed amount admits only itself. The result may be empty.
func Bounds(target *domain.PaymentTarget, balance int64) domain.AmountBounds {
	if target.Amount != nil {
		return domain.AmountBounds{Min: *target.Amount, Max: *target.Amount}
	}

	b := domain.AmountBounds{Min: 1, Max: balance}
	if target.Min != nil && *target.Min > b.Min {
		b.Min = *target.Min
	}
	if target.Max != nil && *target.Max < b.Max {
		b.Max = *target.Max
	}
	return b
}

// Quote is what a payer owes for a request.
type Quote struct {
	Base  int64 `json:"base"`
	Tip   int64 `json:"tip"`
	Total int64 `json:"total"`

	// Bounds applies to Total: the clamped range for Base shifted by Tip.
	Bounds domain.AmountBounds `json:"bounds"`
}

// NewQuote prices target for a payer holding balance. chosen is the base
// amount picked by the payer and is ignored for fixed-amount requests.
// The quote is not checked against its bounds; the authorizer does that
// before signing.
func NewQuote(target *domain.PaymentTarget, balance, chosen, tipPercent int64) (*Quote, error) {
	if err := Validate(target); err != nil {
		return nil, err
	}
	if tipPercent != 0 && !target.AllowTips {
		return nil, fmt.Errorf("%w: request does not accept tips", payerrors.ErrInvalidPaymentRequest)
	}

	base := chosen
	if target.Amount != nil {
		base = *target.Amount
	}
	tip, total, err := Tip(base, tipPercent)
	if err != nil {
		return nil, err
	}

	b := Bounds(target, balance)
	return &Quote{
		Base:   base,
		Tip:    tip,
		Total:  total,
		Bounds: domain.AmountBounds{Min: b.Min + tip, Max: b.Max + tip},
	}, nil
}
