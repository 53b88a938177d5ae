// Package errors provides structured domain errors for the connect service.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Configuration errors
	CodeConfigMasterSecretMissing Code = "CONFIG_MASTER_SECRET_MISSING"
	CodeConfigRandomUnavailable   Code = "CONFIG_RANDOM_UNAVAILABLE"
	CodeConfigPlatformUnavailable Code = "CONFIG_PLATFORM_UNAVAILABLE"

	// Input errors
	CodeWorkspaceIDEmpty Code = "WORKSPACE_ID_EMPTY"
	CodePlatformInvalid  Code = "PLATFORM_INVALID"
	CodeStateEmpty       Code = "STATE_EMPTY"

	// OAuth state rejections
	CodeStateNotFound Code = "STATE_NOT_FOUND"
	CodeStateReplayed Code = "STATE_REPLAYED"
	CodeStateExpired  Code = "STATE_EXPIRED"
	CodePKCEMismatch  Code = "PKCE_MISMATCH"

	// Credential lifecycle
	CodeCredentialsNotFound Code = "CREDENTIALS_NOT_FOUND"
	CodeTokenExpired        Code = "TOKEN_EXPIRED_NO_REFRESH"
	CodeTokenRefreshFailed  Code = "TOKEN_REFRESH_FAILED"

	// Crypto errors
	CodeKeyDerivationFailed Code = "KEY_DERIVATION_FAILED"
	CodeEncryptionFailed    Code = "ENCRYPTION_FAILED"
	CodeDecryptionFailed    Code = "DECRYPTION_FAILED"

	// Storage errors
	CodeStateIssueFailed   Code = "STATE_ISSUE_FAILED"
	CodeStateStorageFailed Code = "STATE_STORAGE_FAILED"
	CodeCredentialsStorage Code = "CREDENTIALS_STORAGE_FAILED"
)

// Kind groups codes by who is at fault and whether retrying can help.
type Kind string

const (
	KindUnknown  Kind = "unknown"
	KindConfig   Kind = "config"
	KindInput    Kind = "input"
	KindRejected Kind = "rejected"
	KindCrypto   Kind = "crypto"
	KindStorage  Kind = "storage"
	KindRefresh  Kind = "refresh"
)

// Kind classifies the code.
func (c Code) Kind() Kind {
	switch c {
	case CodeConfigMasterSecretMissing, CodeConfigRandomUnavailable, CodeConfigPlatformUnavailable:
		return KindConfig
	case CodeWorkspaceIDEmpty, CodePlatformInvalid, CodeStateEmpty:
		return KindInput
	case CodeStateNotFound, CodeStateReplayed, CodeStateExpired, CodePKCEMismatch,
		CodeCredentialsNotFound, CodeTokenExpired:
		return KindRejected
	case CodeKeyDerivationFailed, CodeEncryptionFailed, CodeDecryptionFailed:
		return KindCrypto
	case CodeStateIssueFailed, CodeStateStorageFailed, CodeCredentialsStorage:
		return KindStorage
	case CodeTokenRefreshFailed:
		return KindRefresh
	default:
		return KindUnknown
	}
}

// ClientFault reports whether the code describes a caller-side (4xx) outcome.
func (c Code) ClientFault() bool {
	switch c.Kind() {
	case KindInput, KindRejected:
		return true
	default:
		return false
	}
}

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeWorkspaceIDEmpty,
		CodePlatformInvalid,
		CodeStateEmpty,
		CodePKCEMismatch:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeStateReplayed,
		CodeStateExpired,
		CodeTokenExpired:
		return codes.FailedPrecondition

	// NotFound - resource doesn't exist
	case CodeStateNotFound,
		CodeCredentialsNotFound:
		return codes.NotFound

	// Unavailable - upstream refresh or storage may recover
	case CodeTokenRefreshFailed,
		CodeStateIssueFailed,
		CodeStateStorageFailed,
		CodeCredentialsStorage:
		return codes.Unavailable

	default:
		return codes.Internal
	}
}
