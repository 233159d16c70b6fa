// Package payreq encodes and decodes shareable payment-request links and
// computes what a payer owes for one.
//
// A request link is a base URL with these query parameters:
//
//	pay     recipient uid (required)
//	name    recipient display name
//	img     recipient image URL
//	amount  fixed amount, or
//	min/max donation range (either may be omitted)
//	tips    whether the payer may add a tip
//	memo    note copied into the payment
package payreq

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cast"

	"github.com/mrz1836/paytoken/internal/domain"
	payerrors "github.com/mrz1836/paytoken/internal/errors"
)

// Query parameter names.
const (
	ParamPay    = "pay"
	ParamName   = "name"
	ParamImage  = "img"
	ParamAmount = "amount"
	ParamMin    = "min"
	ParamMax    = "max"
	ParamTips   = "tips"
	ParamMemo   = "memo"
)

// Encode serializes target as query parameters on base. Parameters already
// present on base are kept unless they collide.
func Encode(base string, target *domain.PaymentTarget) (string, error) {
	if err := Validate(target); err != nil {
		return "", err
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: base url %q: %w", payerrors.ErrInvalidPaymentRequest, base, err)
	}

	q := u.Query()
	q.Set(ParamPay, target.UID)
	q.Set(ParamName, target.Name)
	setOptional(q, ParamImage, target.Image)
	setAmount(q, ParamAmount, target.Amount)
	setAmount(q, ParamMin, target.Min)
	setAmount(q, ParamMax, target.Max)
	q.Set(ParamTips, strconv.FormatBool(target.AllowTips))
	setOptional(q, ParamMemo, target.Memo)

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Decode parses a request link. Failures match ErrInvalidPaymentRequest.
func Decode(raw string) (*domain.PaymentTarget, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", payerrors.ErrInvalidPaymentRequest, err)
	}
	q := u.Query()

	target := &domain.PaymentTarget{
		UID:   q.Get(ParamPay),
		Name:  q.Get(ParamName),
		Image: q.Get(ParamImage),
		Memo:  q.Get(ParamMemo),
	}
	if target.Amount, err = parseAmount(q, ParamAmount); err != nil {
		return nil, err
	}
	if target.Min, err = parseAmount(q, ParamMin); err != nil {
		return nil, err
	}
	if target.Max, err = parseAmount(q, ParamMax); err != nil {
		return nil, err
	}
	if v := q.Get(ParamTips); v != "" {
		if target.AllowTips, err = cast.ToBoolE(v); err != nil {
			return nil, fmt.Errorf("%w: %s=%q", payerrors.ErrInvalidPaymentRequest, ParamTips, v)
		}
	}

	if err := Validate(target); err != nil {
		return nil, err
	}
	return target, nil
}

// Validate checks that target is well formed.
func Validate(target *domain.PaymentTarget) error {
	switch {
	case target == nil:
		return fmt.Errorf("%w: empty request", payerrors.ErrInvalidPaymentRequest)
	case target.UID == "":
		return fmt.Errorf("%w: missing %s", payerrors.ErrInvalidPaymentRequest, ParamPay)
	case target.Amount != nil && (target.Min != nil || target.Max != nil):
		return fmt.Errorf("%w: %s cannot be combined with %s/%s", payerrors.ErrInvalidPaymentRequest, ParamAmount, ParamMin, ParamMax)
	case target.Amount != nil && *target.Amount <= 0:
		return fmt.Errorf("%w: %s must be positive", payerrors.ErrInvalidPaymentRequest, ParamAmount)
	case target.Min != nil && *target.Min < 0, target.Max != nil && *target.Max <= 0:
		return fmt.Errorf("%w: range bounds must be positive", payerrors.ErrInvalidPaymentRequest)
	case target.Min != nil && target.Max != nil && *target.Min > *target.Max:
		return fmt.Errorf("%w: %s exceeds %s", payerrors.ErrInvalidPaymentRequest, ParamMin, ParamMax)
	}
	return nil
}

func setOptional(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func setAmount(q url.Values, key string, value *int64) {
	if value != nil {
		q.Set(key, strconv.FormatInt(*value, 10))
	}
}

func parseAmount(q url.Values, key string) (*int64, error) {
	v := q.Get(key)
	if v == "" {
		return nil, nil //nolint:nilnil // absent parameter
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s=%q", payerrors.ErrInvalidPaymentRequest, key, v)
	}
	return &n, nil
}
