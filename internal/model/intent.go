package model

import "math/big"

// TransactionIntent is an unsigned, unsent transaction for one workflow step.
// It lives only until the step's receipt is obtained or the step fails.
type TransactionIntent struct {
	To       string
	Data     []byte
	Value    *big.Int
	GasLimit uint64
	GasPrice *big.Int
	// Method labels the intent for logs and error context.
	Method string
}
