package websession

import "errors"

var (
	// ErrInvalidArgument is returned when a session id, CSRF token or cookie
	// name does not have the required format.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrEncryptionFormat is returned when a stored record cannot be turned
	// back into session data: bad base64, bad JSON, a failed decryption or a
	// decrypted payload that is not an object.
	ErrEncryptionFormat = errors.New("session record format")

	// ErrSessionTooLarge is returned when the encoded record exceeds the configured MaxSessionBytes.
	ErrSessionTooLarge = errors.New("session data too large")

	// ErrUnknownDriver is returned when neither the configured driver nor the default driver is registered.
	ErrUnknownDriver = errors.New("unknown session driver")

	// ErrStoreFailure is returned by manager operations that cannot tolerate a failed store call.
	ErrStoreFailure = errors.New("session store failure")
)
