package models

import "errors"

// UserError is an error whose message can be shown to the user as is.
// Handlers answer these with 400, anything else with 500.
type UserError struct {
	msg string
}

func NewUserError(msg string) *UserError {
	return &UserError{msg: msg}
}

func (e *UserError) Error() string { return e.msg }

// IsUserError reports whether err wraps a *UserError.
func IsUserError(err error) bool {
	var ue *UserError
	return errors.As(err, &ue)
}

var (
	ErrMissingSymbol      = NewUserError("must provide symbol")
	ErrMissingShares      = NewUserError("must provide shares")
	ErrSharesNotInteger   = NewUserError("shares must be an integer")
	ErrSharesNotPositive  = NewUserError("shares must be above zero")
	ErrInvalidSymbol      = NewUserError("invalid symbol")
	ErrInsufficientFunds  = NewUserError("you don't have enough balance to purchase this amount of shares")
	ErrNoHolding          = NewUserError("you don't have holdings of this company")
	ErrInsufficientShares = NewUserError("you don't have enough shares to be sold")

	ErrMissingAmount = NewUserError("must provide cash amount")
	ErrInvalidAmount = NewUserError("cash amount must be a number with at most two decimals")
	ErrAmountRange   = NewUserError("cash amount must be above zero and at most 1,000,000")

	ErrMissingUsername     = NewUserError("must provide username")
	ErrMissingPassword     = NewUserError("must provide password")
	ErrMissingConfirmation = NewUserError("must provide password confirmation")
	ErrPasswordMismatch    = NewUserError("password confirmation does not match")
	ErrUsernameTaken       = NewUserError("username already exists")
	ErrInvalidCredentials  = NewUserError("invalid username and/or password")
)

// ErrUserNotFound is internal: login turns it into ErrInvalidCredentials.
var ErrUserNotFound = errors.New("user not found")
