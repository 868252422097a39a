// internal/payments/rules.go
package payments

import (
	"strings"

	apperrors "internship-portal/internal/common/errors"
)

const (
	transactionCodeLength = 10
	phoneCountryCode      = "254"
	subscriberDigits      = 9
)

// Result is the outcome of a single format rule. Err is set iff Valid is false.
type Result struct {
	Valid      bool
	Normalized string
	Err        *apperrors.StandardError
}

func invalid(err *apperrors.StandardError) Result {
	return Result{Valid: false, Err: err}
}

// ValidateTransactionCode trims and upper-cases raw and requires exactly ten
// ASCII letters or digits.
func ValidateTransactionCode(raw string) Result {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) != transactionCodeLength {
		return invalid(apperrors.NewInvalidCodeFormatError(raw))
	}
	code := make([]byte, len(trimmed))
	for i := 0; i < len(trimmed); i++ {
		c := trimmed[i]
		switch {
		case c >= 'a' && c <= 'z':
			code[i] = c - 'a' + 'A'
		case c >= 'A' && c <= 'Z', isDigit(c):
			code[i] = c
		default:
			return invalid(apperrors.NewInvalidCodeFormatError(raw))
		}
	}
	return Result{Valid: true, Normalized: string(code)}
}

// NormalizePhone returns the canonical 254XXXXXXXXX form of a Kenyan mobile
// number. Accepted shapes: 254XXXXXXXXX, 0XXXXXXXXX and 7XXXXXXXX. Spaces,
// dashes and a leading '+' are ignored.
func NormalizePhone(raw string) Result {
	digits := strings.TrimPrefix(stripSeparators(strings.TrimSpace(raw)), "+")
	if digits == "" || !allDigits(digits) {
		return invalid(apperrors.NewInvalidPhoneFormatError(raw))
	}

	var subscriber string
	switch {
	case len(digits) == len(phoneCountryCode)+subscriberDigits && strings.HasPrefix(digits, phoneCountryCode):
		subscriber = digits[len(phoneCountryCode):]
	case len(digits) == subscriberDigits+1 && digits[0] == '0':
		subscriber = digits[1:]
	case len(digits) == subscriberDigits && digits[0] == '7':
		subscriber = digits
	default:
		return invalid(apperrors.NewInvalidPhoneFormatError(raw))
	}
	return Result{Valid: true, Normalized: phoneCountryCode + subscriber}
}

// AmountRule checks a submitted amount against the application fee.
type AmountRule struct {
	Fee       int64
	Tolerance int64
}

// AmountResult reports the absolute distance from the fee even when valid.
type AmountResult struct {
	Valid       bool
	Amount      int64
	Discrepancy int64
	Err         *apperrors.StandardError
}

func (r AmountRule) Validate(amount int64) AmountResult {
	discrepancy := amount - r.Fee
	if discrepancy < 0 {
		discrepancy = -discrepancy
	}
	if amount <= 0 || discrepancy > r.Tolerance {
		return AmountResult{
			Amount:      amount,
			Discrepancy: discrepancy,
			Err:         apperrors.NewAmountMismatchError(r.Fee, amount, r.Tolerance),
		}
	}
	return AmountResult{Valid: true, Amount: amount, Discrepancy: discrepancy}
}

// Submission is a raw applicant payment claim.
type Submission struct {
	TransactionCode string
	Phone           string
	Amount          int64
}

// Normalized is a Submission whose fields passed every format rule.
type Normalized struct {
	TransactionCode string
	Phone           string
	Amount          int64
}

// ValidateSubmission applies every rule in order and returns the first failure.
func (r AmountRule) ValidateSubmission(s Submission) (Normalized, *apperrors.StandardError) {
	code := ValidateTransactionCode(s.TransactionCode)
	if !code.Valid {
		return Normalized{}, code.Err
	}
	phone := NormalizePhone(s.Phone)
	if !phone.Valid {
		return Normalized{}, phone.Err
	}
	amount := r.Validate(s.Amount)
	if !amount.Valid {
		return Normalized{}, amount.Err
	}
	return Normalized{TransactionCode: code.Normalized, Phone: phone.Normalized, Amount: s.Amount}, nil
}

func stripSeparators(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '\t':
			return -1
		}
		return r
	}, s)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
