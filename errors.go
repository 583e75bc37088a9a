package e3kit

import (
	"errors"
	"fmt"

	"github.com/vaultsandbox/e3kit-go/internal/api"
)

// Sentinel errors for errors.Is() checks
var (
	// ErrConfiguration is returned for invalid caller input such as an empty
	// identity or password.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrNotBootstrapped is returned when an operation needs a local private
	// key and none is stored.
	ErrNotBootstrapped = errors.New("identity is not bootstrapped")

	// ErrPrivateKeyExists is returned when an operation would overwrite the
	// local private key.
	ErrPrivateKeyExists = errors.New("private key already exists locally")

	// ErrPrivateKeyNotFound is returned when a private key is absent, either
	// locally or as a cloud backup.
	ErrPrivateKeyNotFound = errors.New("private key not found")

	// ErrBackupKeyExists is returned when backing up over an existing backup.
	ErrBackupKeyExists = errors.New("private key backup already exists")

	// ErrWrongPassword is returned when a password does not open the backup.
	ErrWrongPassword = errors.New("wrong password")

	// ErrEmptyArgument is returned when a required list or value is empty.
	ErrEmptyArgument = errors.New("empty argument")

	// ErrDuplicateIdentity is returned when a lookup names an identity twice.
	ErrDuplicateIdentity = errors.New("duplicate identity")

	// ErrPublicKeyNotFound is returned when an identity has no card.
	ErrPublicKeyNotFound = errors.New("public key not found")

	// ErrVerification is returned when a ciphertext signature is missing or
	// does not match the sender.
	ErrVerification = errors.New("signature verification failed")

	// ErrDecryption is returned when a ciphertext cannot be decrypted with
	// the local key.
	ErrDecryption = errors.New("decryption failed")

	// ErrBootstrap is returned when the card was published but the key could
	// not be stored locally.
	ErrBootstrap = errors.New("bootstrap failed")

	// ErrInvalidArgument is returned for arguments that are well formed but
	// not allowed, such as passing the caller's own key as a recipient.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrIdentityAlreadyRegistered is returned by Register when the identity
	// already has a card.
	ErrIdentityAlreadyRegistered = errors.New("identity already registered")

	// ErrIdentityNotRegistered is returned by RotatePrivateKey when the
	// identity has no card.
	ErrIdentityNotRegistered = errors.New("identity not registered")

	// ErrUnauthorized is returned when a token is missing, empty or rejected.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited is returned when the server throttles the caller.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// E3KitError is implemented by all SDK errors.
type E3KitError interface {
	error
	E3KitError() // marker method
}

// ConfigurationError reports invalid caller input.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
	}
	return "configuration error: " + e.Message
}

// Is implements errors.Is for sentinel error matching.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// E3KitError implements the E3KitError interface.
func (e *ConfigurationError) E3KitError() {}

// NotBootstrappedError reports a missing local private key. It also matches
// ErrPrivateKeyNotFound.
type NotBootstrappedError struct {
	Identity string
}

func (e *NotBootstrappedError) Error() string {
	return fmt.Sprintf("identity %q has no local private key; call Bootstrap first", e.Identity)
}

// Is implements errors.Is for sentinel error matching.
func (e *NotBootstrappedError) Is(target error) bool {
	return target == ErrNotBootstrapped || target == ErrPrivateKeyNotFound
}

// E3KitError implements the E3KitError interface.
func (e *NotBootstrappedError) E3KitError() {}

// PrivateKeyExistsError is returned when a local private key is already
// stored for the identity.
type PrivateKeyExistsError struct {
	Identity string
}

func (e *PrivateKeyExistsError) Error() string {
	return fmt.Sprintf("identity %q already has a local private key", e.Identity)
}

// Is implements errors.Is for sentinel error matching.
func (e *PrivateKeyExistsError) Is(target error) bool { return target == ErrPrivateKeyExists }

// E3KitError implements the E3KitError interface.
func (e *PrivateKeyExistsError) E3KitError() {}

// PrivateKeyNotFoundError is returned when no cloud backup exists.
type PrivateKeyNotFoundError struct {
	Identity string
}

func (e *PrivateKeyNotFoundError) Error() string {
	return fmt.Sprintf("no private key backup for identity %q", e.Identity)
}

// Is implements errors.Is for sentinel error matching.
func (e *PrivateKeyNotFoundError) Is(target error) bool { return target == ErrPrivateKeyNotFound }

// E3KitError implements the E3KitError interface.
func (e *PrivateKeyNotFoundError) E3KitError() {}

// BackupKeyError is returned when a backup already exists.
type BackupKeyError struct {
	Identity string
}

func (e *BackupKeyError) Error() string {
	return fmt.Sprintf("identity %q already has a private key backup; reset it or change the password", e.Identity)
}

// Is implements errors.Is for sentinel error matching.
func (e *BackupKeyError) Is(target error) bool { return target == ErrBackupKeyExists }

// E3KitError implements the E3KitError interface.
func (e *BackupKeyError) E3KitError() {}

// WrongPasswordError is returned when the password-derived credential does
// not authenticate against the stored backup.
type WrongPasswordError struct {
	Identity string
}

func (e *WrongPasswordError) Error() string {
	return fmt.Sprintf("wrong password for the backup of identity %q", e.Identity)
}

// Is implements errors.Is for sentinel error matching.
func (e *WrongPasswordError) Is(target error) bool { return target == ErrWrongPassword }

// E3KitError implements the E3KitError interface.
func (e *WrongPasswordError) E3KitError() {}

// EmptyArgumentError names the argument that was empty.
type EmptyArgumentError struct {
	Argument string
}

func (e *EmptyArgumentError) Error() string {
	return fmt.Sprintf("%s must not be empty", e.Argument)
}

// Is implements errors.Is for sentinel error matching.
func (e *EmptyArgumentError) Is(target error) bool { return target == ErrEmptyArgument }

// E3KitError implements the E3KitError interface.
func (e *EmptyArgumentError) E3KitError() {}

// DuplicateIdentityError names an identity listed more than once.
type DuplicateIdentityError struct {
	Identity string
}

func (e *DuplicateIdentityError) Error() string {
	return fmt.Sprintf("identity %q is listed more than once", e.Identity)
}

// Is implements errors.Is for sentinel error matching.
func (e *DuplicateIdentityError) Is(target error) bool { return target == ErrDuplicateIdentity }

// E3KitError implements the E3KitError interface.
func (e *DuplicateIdentityError) E3KitError() {}

// PublicKeyNotFoundError names the first identity without a card.
type PublicKeyNotFoundError struct {
	Identity string
}

func (e *PublicKeyNotFoundError) Error() string {
	return fmt.Sprintf("no public key found for identity %q", e.Identity)
}

// Is implements errors.Is for sentinel error matching.
func (e *PublicKeyNotFoundError) Is(target error) bool { return target == ErrPublicKeyNotFound }

// E3KitError implements the E3KitError interface.
func (e *PublicKeyNotFoundError) E3KitError() {}

// VerificationError is returned when a ciphertext is unsigned or was not
// signed by the expected sender.
type VerificationError struct {
	Err error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("signature verification failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *VerificationError) Unwrap() error { return e.Err }

// Is implements errors.Is for sentinel error matching.
func (e *VerificationError) Is(target error) bool { return target == ErrVerification }

// E3KitError implements the E3KitError interface.
func (e *VerificationError) E3KitError() {}

// DecryptionError is returned when the local key is not a recipient or the
// ciphertext is malformed.
type DecryptionError struct {
	Err error
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("decryption failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *DecryptionError) Unwrap() error { return e.Err }

// Is implements errors.Is for sentinel error matching.
func (e *DecryptionError) Is(target error) bool { return target == ErrDecryption }

// E3KitError implements the E3KitError interface.
func (e *DecryptionError) E3KitError() {}

// BootstrapError is returned when the card was published but storing the
// private key failed. The card stays published; retrying Bootstrap publishes
// a new one.
type BootstrapError struct {
	Identity string
	CardID   string
	Err      error
}

func (e *BootstrapError) Error() string {
	return fmt.Sprintf("bootstrap of %q: card %s published but key not stored: %v", e.Identity, e.CardID, e.Err)
}

// Unwrap returns the underlying error.
func (e *BootstrapError) Unwrap() error { return e.Err }

// Is implements errors.Is for sentinel error matching.
func (e *BootstrapError) Is(target error) bool { return target == ErrBootstrap }

// E3KitError implements the E3KitError interface.
func (e *BootstrapError) E3KitError() {}

// InvalidArgumentError reports a disallowed argument.
type InvalidArgumentError struct {
	Message string
}

func (e *InvalidArgumentError) Error() string {
	return "invalid argument: " + e.Message
}

// Is implements errors.Is for sentinel error matching.
func (e *InvalidArgumentError) Is(target error) bool { return target == ErrInvalidArgument }

// E3KitError implements the E3KitError interface.
func (e *InvalidArgumentError) E3KitError() {}

// IdentityAlreadyRegisteredError is returned by Register.
type IdentityAlreadyRegisteredError struct {
	Identity string
}

func (e *IdentityAlreadyRegisteredError) Error() string {
	return fmt.Sprintf("identity %q is already registered", e.Identity)
}

// Is implements errors.Is for sentinel error matching.
func (e *IdentityAlreadyRegisteredError) Is(target error) bool {
	return target == ErrIdentityAlreadyRegistered
}

// E3KitError implements the E3KitError interface.
func (e *IdentityAlreadyRegisteredError) E3KitError() {}

// IdentityNotRegisteredError is returned by RotatePrivateKey.
type IdentityNotRegisteredError struct {
	Identity string
}

func (e *IdentityNotRegisteredError) Error() string {
	return fmt.Sprintf("identity %q is not registered", e.Identity)
}

// Is implements errors.Is for sentinel error matching.
func (e *IdentityNotRegisteredError) Is(target error) bool {
	return target == ErrIdentityNotRegistered
}

// E3KitError implements the E3KitError interface.
func (e *IdentityNotRegisteredError) E3KitError() {}

// Collaborator names.
const (
	CollaboratorDirectory  = "directory"
	CollaboratorCloud      = "cloud"
	CollaboratorKeyStorage = "keystorage"
	CollaboratorCrypto     = "crypto"
	CollaboratorToken      = "token"
)

// CollaboratorError wraps a failure of an external collaborator and names
// it.
type CollaboratorError struct {
	Collaborator string
	Op           string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Collaborator, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *CollaboratorError) Unwrap() error { return e.Err }

// E3KitError implements the E3KitError interface.
func (e *CollaboratorError) E3KitError() {}

// APIError represents an HTTP error from the directory or cloud server.
type APIError struct {
	StatusCode int
	Message    string
	RequestID  string // if returned by server
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		if e.Message != "" {
			return fmt.Sprintf("API error %d: %s (request_id: %s)", e.StatusCode, e.Message, e.RequestID)
		}
		return fmt.Sprintf("API error %d (request_id: %s)", e.StatusCode, e.RequestID)
	}
	if e.Message != "" {
		return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error %d", e.StatusCode)
}

// E3KitError implements the E3KitError interface.
func (e *APIError) E3KitError() {}

// Is implements errors.Is for sentinel error matching.
func (e *APIError) Is(target error) bool {
	switch e.StatusCode {
	case 401, 403:
		return target == ErrUnauthorized
	case 429:
		return target == ErrRateLimited
	}
	return false
}

// NetworkError represents a network-level failure.
type NetworkError struct {
	Err     error
	URL     string
	Attempt int
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// E3KitError implements the E3KitError interface.
func (e *NetworkError) E3KitError() {}

// wrapError converts internal API errors to public errors.
// This ensures that errors.Is() checks work with public sentinel errors.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var tokErr *api.TokenError
	if errors.As(err, &tokErr) {
		return fmt.Errorf("%w: %v", ErrUnauthorized, tokErr.Err)
	}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return &APIError{
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Message,
			RequestID:  apiErr.RequestID,
		}
	}

	var netErr *api.NetworkError
	if errors.As(err, &netErr) {
		return &NetworkError{
			Err:     netErr.Err,
			URL:     netErr.URL,
			Attempt: netErr.Attempt,
		}
	}

	return err
}

func collaboratorError(collaborator, op string, err error) error {
	return &CollaboratorError{Collaborator: collaborator, Op: op, Err: err}
}
