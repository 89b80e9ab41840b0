package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput        = errors.New("message is required")
	ErrProviderUnavailable = errors.New("completion provider unavailable")

	// Both are kinds of ErrProviderUnavailable and match it with errors.Is.
	ErrProviderTimeout   = fmt.Errorf("%w: deadline exceeded", ErrProviderUnavailable)
	ErrMalformedResponse = fmt.Errorf("%w: malformed response", ErrProviderUnavailable)
)
