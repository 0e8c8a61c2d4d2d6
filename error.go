package algofi

import (
	"fmt"
)

var (
	ErrConfiguration         = fmt.Errorf("configuration error")
	ErrStateRead             = fmt.Errorf("state read failed")
	ErrUnsupportedOperation  = fmt.Errorf("unsupported operation")
	ErrNoStorageAddress      = fmt.Errorf("no storage address")
	ErrArgumentCountMismatch = fmt.Errorf("argument count mismatch")
	ErrUnsupportedAsset      = fmt.Errorf("unsupported asset")
	ErrInsufficientBalance   = fmt.Errorf("insufficient balance")
	ErrSubmissionFailed      = fmt.Errorf("submission failed")
	ErrConfirmationTimeout   = fmt.Errorf("confirmation timeout")
	ErrNotSigned             = fmt.Errorf("transaction group not signed")
	ErrSignerMismatch        = fmt.Errorf("key does not belong to signer")
	ErrStateNotFound         = fmt.Errorf("state not found")
	ErrInvalidNetwork        = fmt.Errorf("invalid network")
	ErrRpcFailed             = fmt.Errorf("rpc request failed")
	ErrGroupNotFound         = fmt.Errorf("prepared group not found")
)

// AllErrors lets remote callers turn an error string back into a sentinel.
var AllErrors = []error{
	ErrConfiguration,
	ErrStateRead,
	ErrUnsupportedOperation,
	ErrNoStorageAddress,
	ErrArgumentCountMismatch,
	ErrUnsupportedAsset,
	ErrInsufficientBalance,
	ErrSubmissionFailed,
	ErrConfirmationTimeout,
	ErrNotSigned,
	ErrSignerMismatch,
	ErrStateNotFound,
	ErrInvalidNetwork,
	ErrRpcFailed,
	ErrGroupNotFound,
}
