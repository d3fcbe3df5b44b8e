package domain

import (
	apperrors "github.com/allisson/flexauth/internal/errors"
)

// ErrUnsupportedAlgorithm indicates the requested encryption algorithm is not supported.
var ErrUnsupportedAlgorithm = apperrors.New(
	apperrors.KindCryptoFailure,
	"unsupported algorithm",
)

// ErrInvalidKeyString indicates a composite key string is not shaped like
// "<64 hex chars>.<24 hex chars>".
var ErrInvalidKeyString = apperrors.New(
	apperrors.KindCryptoFailure,
	"invalid key string",
)

// ErrAuthenticationFailed indicates GCM/ChaCha20 tag verification failed
// during decryption: wrong key, wrong IV, or tampered ciphertext.
var ErrAuthenticationFailed = apperrors.New(
	apperrors.KindCryptoFailure,
	"authentication failed",
)

// ErrInvalidKeySize indicates a raw key is not exactly KeyBytes long.
var ErrInvalidKeySize = apperrors.New(
	apperrors.KindCryptoFailure,
	"invalid key size",
)
