package domain

import (
	"errors"
	"fmt"
)

var (
	ErrAuth        = errors.New("authentication error")
	ErrAuthMissing = fmt.Errorf("%w: missing token", ErrAuth)
	ErrAuthInvalid = fmt.Errorf("%w: invalid token", ErrAuth)

	ErrStore = errors.New("store error")

	ErrValidation     = errors.New("validation error")
	ErrEmptyContent   = fmt.Errorf("%w: empty message", ErrValidation)
	ErrContentTooLong = fmt.Errorf("%w: message too long", ErrValidation)
	ErrInvalidRoom    = fmt.Errorf("%w: invalid room id", ErrValidation)
	ErrNotJoined      = fmt.Errorf("%w: room not joined", ErrValidation)

	ErrProfileNotFound = errors.New("profile not found")
)

// StoreError оборачивает ошибку хранилища так, чтобы errors.Is(err, ErrStore)
// срабатывал, а исходная причина оставалась доступной.
func StoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}
