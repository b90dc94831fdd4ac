package transport

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/Mithrandiirr/hookwise/core"
)

func deliveryError(message string) error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ErrorCodeBadInput)
}

func deliveryWrapError(source error, message string) error {
	if source == nil {
		return deliveryError(message)
	}
	return goerrors.Wrap(source, goerrors.CategoryBadInput, message).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ErrorCodeBadInput)
}
