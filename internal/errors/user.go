package errors

import "errors"

// ErrorInfo holds user-facing message and suggested action for an error.
type ErrorInfo struct {
	// Message is the user-friendly error description.
	Message string
	// Action is a suggested action to resolve the issue (empty if none).
	Action string
}

type errorEntry struct {
	err  error
	info ErrorInfo
}

// errorInfoEntries maps sentinels to user-facing text. Kinds come before their
// categories because the first errors.Is match wins.
//
//nolint:gochecknoglobals // Pre-built mapping for efficiency
var errorInfoEntries = []errorEntry{
	// Authorization
	{
		err: ErrIdentityRequired,
		info: ErrorInfo{
			Message: "No certified identity is available on this device.",
			Action:  "Run 'paytoken identity init --uid <uid> --name <name>' first.",
		},
	},
	{
		err: ErrInsufficientBalance,
		info: ErrorInfo{
			Message: "The amount must be positive and no larger than your known balance.",
			Action:  "Run 'paytoken balance --refresh' or choose a smaller amount.",
		},
	},
	{
		err: ErrOutOfRange,
		info: ErrorInfo{
			Message: "The amount is outside the range allowed by the payment request.",
			Action:  "Choose an amount within the displayed minimum and maximum.",
		},
	},

	// Verification
	{
		err: ErrMalformedToken,
		info: ErrorInfo{
			Message: "The payment token could not be decoded.",
			Action:  "Ask the payer for the token again; it may have been truncated.",
		},
	},
	{
		err: ErrInvalidCertificate,
		info: ErrorInfo{
			Message: "The token's certificate was not issued by the trusted authority.",
			Action:  "Do not accept this payment. Check that your trust anchor is correct.",
		},
	},
	{
		err: ErrInvalidSignature,
		info: ErrorInfo{
			Message: "The token's signature does not match its contents.",
			Action:  "Do not accept this payment; the token was altered or forged.",
		},
	},

	// Settlement
	{
		err: ErrAlreadySettled,
		info: ErrorInfo{
			Message: "This payment was already settled.",
		},
	},
	{
		err: ErrUnknownParty,
		info: ErrorInfo{
			Message: "The ledger does not know the sender or the recipient.",
			Action:  "Make sure both parties have provisioned an identity.",
		},
	},
	{
		err: ErrInsufficientFunds,
		info: ErrorInfo{
			Message: "The payer's ledger balance cannot cover this payment.",
			Action:  "Contact the payer; the token cannot be settled.",
		},
	},
	{
		err: ErrWrongClaimant,
		info: ErrorInfo{
			Message: "This payment is addressed to a different recipient.",
		},
	},

	// Categories
	{
		err: ErrProvisioning,
		info: ErrorInfo{
			Message: "The trust authority could not issue a certificate.",
			Action:  "Check your connection, then run 'paytoken identity init --retry'.",
		},
	},
	{
		err: ErrAuthorization,
		info: ErrorInfo{
			Message: "The payment could not be authorized.",
		},
	},
	{
		err: ErrVerification,
		info: ErrorInfo{
			Message: "The payment token is not valid.",
		},
	},
	{
		err: ErrSettlement,
		info: ErrorInfo{
			Message: "The ledger rejected the settlement.",
		},
	},

	// Infrastructure
	{
		err: ErrLedgerUnavailable,
		info: ErrorInfo{
			Message: "The ledger could not be reached.",
			Action:  "Claim with --offline to queue it, or retry when you are back online.",
		},
	},
	{
		err: ErrAuthorityUnavailable,
		info: ErrorInfo{
			Message: "The trust authority could not be reached.",
			Action:  "Check authority.url in your configuration and your network connection.",
		},
	},
	{
		err: ErrKeyNotFound,
		info: ErrorInfo{
			Message: "No key is stored for this user.",
			Action:  "Run 'paytoken identity init' to create one.",
		},
	},
	{
		err: ErrSealed,
		info: ErrorInfo{
			Message: "The stored private key could not be unsealed.",
			Action:  "Check the passphrase environment variable named by storage.passphrase_env.",
		},
	},
	{
		err: ErrTrustAnchorMissing,
		info: ErrorInfo{
			Message: "No trust anchor is configured, so tokens cannot be verified.",
			Action:  "Run 'paytoken anchor fetch' or set trust.anchor in your configuration.",
		},
	},
	{
		err: ErrInvalidPaymentRequest,
		info: ErrorInfo{
			Message: "The payment request link is not valid.",
			Action:  "Ask the recipient to share the link again.",
		},
	},
	{
		err: ErrLockTimedOut,
		info: ErrorInfo{
			Message: "Another paytoken process is holding the local store.",
			Action:  "Wait for it to finish, or increase storage.lock_timeout.",
		},
	},
	{
		err: ErrClaimExists,
		info: ErrorInfo{
			Message: "This payment is already queued for settlement.",
			Action:  "Run 'paytoken claims list' to see its status.",
		},
	},
	{
		err: ErrConfigInvalid,
		info: ErrorInfo{
			Message: "The configuration is invalid.",
			Action:  "Run 'paytoken config show' to inspect the effective configuration.",
		},
	},
}

//nolint:gochecknoglobals // Built once from errorInfoEntries
var errorInfoMap = buildErrorInfoMap()

func buildErrorInfoMap() map[error]ErrorInfo {
	m := make(map[error]ErrorInfo, len(errorInfoEntries))
	for _, entry := range errorInfoEntries {
		m[entry.err] = entry.info
	}
	return m
}

// getErrorInfo tries a direct lookup first, then walks the chain with errors.Is.
func getErrorInfo(err error) ErrorInfo {
	if info, ok := errorInfoMap[err]; ok {
		return info
	}
	for _, entry := range errorInfoEntries {
		if errors.Is(err, entry.err) {
			return entry.info
		}
	}
	return ErrorInfo{Message: err.Error()}
}

// UserMessage returns a user-friendly message for common errors.
// For unrecognized errors, it returns the error's original message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return getErrorInfo(err).Message
}

// Actionable returns a user-friendly error message along with a suggested
// action the user can take. The action is empty when there is nothing to do.
func Actionable(err error) (message, action string) {
	if err == nil {
		return "", ""
	}
	info := getErrorInfo(err)
	return info.Message, info.Action
}
