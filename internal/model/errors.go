package model

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPrice reports a non-positive or out-of-bounds price input.
	ErrInvalidPrice = errors.New("invalid price")

	// ErrUnknownFeeTier reports a fee outside the supported tier table.
	ErrUnknownFeeTier = errors.New("unknown fee tier")

	// ErrInvalidRange reports tick bounds that collapsed after alignment.
	ErrInvalidRange = errors.New("invalid tick range")

	// ErrInsufficientBalance reports a failed pre-flight balance check.
	// No transaction has been built or sent when this is returned.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrPositionNotFound reports a token ID the manager does not know.
	ErrPositionNotFound = errors.New("position not found")

	// ErrTxUnconfirmed reports a sent transaction whose receipt did not
	// arrive in time. The transaction may still confirm; callers must
	// re-check chain state before retrying.
	ErrTxUnconfirmed = errors.New("transaction unconfirmed")
)

// ContractCallError wraps a transport failure or contract revert with the
// contract and method that produced it.
type ContractCallError struct {
	Contract string
	Method   string
	Err      error
}

func (e *ContractCallError) Error() string {
	return fmt.Sprintf("contract call %s.%s: %v", e.Contract, e.Method, e.Err)
}

func (e *ContractCallError) Unwrap() error {
	return e.Err
}
