// SPDX-License-Identifier: BUSL-1.1
package core

import (
	"errors"
	"fmt"
)

// ApiError is the u16 revert-code space guests observe via revert(status)
// (spec section 6). The reserved prefix is system-defined; codes above
// ReservedMax are contract-defined user codes.
type ApiError uint16

const (
	ApiNone                         ApiError = 1
	ApiMissingArgument              ApiError = 2
	ApiInvalidArgument              ApiError = 3
	ApiDeserialize                  ApiError = 4
	ApiRead                         ApiError = 5
	ApiValueNotFound                ApiError = 6
	ApiContractNotFound             ApiError = 7
	ApiGetKey                       ApiError = 8
	ApiUnexpectedKeyVariant         ApiError = 9
	ApiUnexpectedCLValue            ApiError = 10
	ApiUnexpectedContractRefVariant ApiError = 11
	ApiInvalidPurseName             ApiError = 12
	ApiInvalidPurse                 ApiError = 13
	ApiUpgrade                      ApiError = 14
	ApiTransfer                     ApiError = 15
	ApiNoAccessRights               ApiError = 16
	ApiCLTypeMismatch               ApiError = 17
	ApiEarlyEndOfStream             ApiError = 18
	ApiFormatting                   ApiError = 19
	ApiLeftOverBytes                ApiError = 20
	ApiOutOfMemory                  ApiError = 21
	ApiMaxKeysLimit                 ApiError = 22
	ApiDuplicateKey                 ApiError = 23
	ApiPermissionDenied             ApiError = 24
	ApiMissingKey                   ApiError = 25
	ApiThresholdViolation           ApiError = 26
	ApiKeyManagementThreshold       ApiError = 27
	ApiDeploymentThreshold          ApiError = 28
	ApiInsufficientTotalWeight      ApiError = 29
	ApiInvalidSystemContract        ApiError = 30
	ApiFailedTransfer               ApiError = 31
	ApiInvalidContractVersion       ApiError = 32
	ApiNoSuchMethod                 ApiError = 33
	ApiKeyNotFoundInAccount         ApiError = 34
	ApiGasLimit                     ApiError = 35

	// ReservedMax is the highest reserved system code; User(code) is encoded
	// as ReservedMax + code.
	ReservedMax ApiError = 35
)

// UserError encodes a contract-defined revert code into the shared ApiError
// numbering space.
func UserError(code uint16) ApiError { return ReservedMax + ApiError(code) }

// IsUser reports whether this code falls in the contract-defined range.
func (e ApiError) IsUser() bool { return e > ReservedMax }

func (e ApiError) String() string {
	if e.IsUser() {
		return fmt.Sprintf("User(%d)", uint16(e-ReservedMax))
	}
	names := map[ApiError]string{
		ApiNone: "None", ApiMissingArgument: "MissingArgument", ApiInvalidArgument: "InvalidArgument",
		ApiDeserialize: "Deserialize", ApiRead: "Read", ApiValueNotFound: "ValueNotFound",
		ApiContractNotFound: "ContractNotFound", ApiGetKey: "GetKey",
		ApiUnexpectedKeyVariant: "UnexpectedKeyVariant", ApiUnexpectedCLValue: "UnexpectedCLValue",
		ApiUnexpectedContractRefVariant: "UnexpectedContractRefVariant", ApiInvalidPurseName: "InvalidPurseName",
		ApiInvalidPurse: "InvalidPurse", ApiUpgrade: "Upgrade", ApiTransfer: "Transfer",
		ApiNoAccessRights: "NoAccessRights", ApiCLTypeMismatch: "CLTypeMismatch",
		ApiEarlyEndOfStream: "EarlyEndOfStream", ApiFormatting: "Formatting", ApiLeftOverBytes: "LeftOverBytes",
		ApiOutOfMemory: "OutOfMemory", ApiMaxKeysLimit: "MaxKeysLimit", ApiDuplicateKey: "DuplicateKey",
		ApiPermissionDenied: "PermissionDenied", ApiMissingKey: "MissingKey",
		ApiThresholdViolation: "ThresholdViolation", ApiKeyManagementThreshold: "KeyManagementThreshold",
		ApiDeploymentThreshold: "DeploymentThreshold", ApiInsufficientTotalWeight: "InsufficientTotalWeight",
		ApiInvalidSystemContract: "InvalidSystemContract", ApiFailedTransfer: "FailedTransfer",
		ApiInvalidContractVersion: "InvalidContractVersion", ApiNoSuchMethod: "NoSuchMethod",
		ApiKeyNotFoundInAccount: "KeyNotFoundInAccount", ApiGasLimit: "GasLimit",
	}
	if n, ok := names[e]; ok {
		return n
	}
	return fmt.Sprintf("ApiError(%d)", uint16(e))
}

// Sentinel engine errors. Host-function implementations wrap one of these
// (or an ApiError) and the executor pattern-matches at each unwind point, per
// spec section 7.
var (
	ErrForgedReference      = errors.New("forged reference")
	ErrInvalidAccess        = errors.New("invalid access")
	ErrGasLimitExceeded     = errors.New("gas limit exceeded")
	ErrCLTypeMismatch       = errors.New("CLType mismatch")
	ErrMissingArgument      = errors.New("missing argument")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrValueNotFound        = errors.New("value not found")
	ErrExpectedReturnValue  = errors.New("expected return value")
	ErrInvalidContext       = errors.New("invalid context: session call from contract context")
	ErrTransformConflict    = errors.New("transform conflict")
	ErrTrieNotFound         = errors.New("trie node not found")
	ErrInvalidContractVer   = errors.New("invalid contract version")
	ErrAuthorizationFailure = errors.New("authorization failure")
	ErrInsufficientWeight   = errors.New("insufficient total weight")
	ErrInsufficientPayment  = errors.New("insufficient payment")
	ErrInvalidPurse         = errors.New("invalid purse")
)

// ForgedReferenceError carries the offending URef for diagnostics.
type ForgedReferenceError struct{ URef URef }

func (e *ForgedReferenceError) Error() string {
	return fmt.Sprintf("forged reference: %s", e.URef)
}
func (e *ForgedReferenceError) Unwrap() error { return ErrForgedReference }

// Reverted is the only error variant a guest can observe: it carries the
// ApiError the contract (or host) reverted with. All other EngineError
// values are fatal to the deploy (spec section 7).
type Reverted struct{ Code ApiError }

func (e *Reverted) Error() string { return fmt.Sprintf("revert: %s", e.Code) }

// Revert constructs a Reverted error for the given code.
func Revert(code ApiError) error { return &Reverted{Code: code} }

// AsReverted extracts a *Reverted from err, if it is one (possibly wrapped).
func AsReverted(err error) (*Reverted, bool) {
	var r *Reverted
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
