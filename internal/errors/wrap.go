package errors

import "fmt"

// Wrap adds context to errors at package boundaries.
// It returns nil if err is nil, allowing for safe inline usage.
//
// The wrapped error preserves the original error chain, enabling
// errors.Is() checks to continue working:
//
//	if err := store.Put(ctx, uid, rec); err != nil {
//	    return errors.Wrap(err, "failed to persist key")
//	}
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf adds formatted context to errors at package boundaries.
// It returns nil if err is nil.
//
//	return errors.Wrapf(err, "failed to settle claim %s", claimID)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", msg, err)
}

// Kind joins a category sentinel with a kind sentinel so errors.Is matches both:
//
//	err := errors.Kind(errors.ErrVerification, errors.ErrInvalidSignature)
//	errors.Is(err, errors.ErrVerification)     // true
//	errors.Is(err, errors.ErrInvalidSignature) // true
func Kind(category, kind error) error {
	return fmt.Errorf("%w: %w", category, kind)
}

// Kindf is Kind with a formatted detail appended to the message.
func Kindf(category, kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", category, kind, fmt.Sprintf(format, args...))
}
