package service

import (
	"strings"

	apperrors "github.com/hellhack-ui/HoloPass/internal/errors"
	"github.com/hellhack-ui/HoloPass/internal/types"
)

// requireAddress checks a wallet address field and returns it normalized
func requireAddress(field, value, missingMessage string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", apperrors.NewMissingFieldError(field, missingMessage)
	}
	if !types.IsHexAddress(value) {
		return "", apperrors.NewInvalidAddressError(value)
	}
	return types.NormalizeAddress(value), nil
}

// checkActor rejects a signed-in caller acting for another wallet. An empty
// actor means the request carried no session.
func checkActor(actor, address string) error {
	if actor == "" {
		return nil
	}
	if types.NormalizeAddress(actor) != types.NormalizeAddress(address) {
		return apperrors.NewForbiddenError("Session does not belong to this address")
	}
	return nil
}
