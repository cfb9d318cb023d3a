package presenceerrors

import (
	"net/http"

	"go-presence/internal/shared/apperror"
)

var (
	ErrInvalidUserID = apperror.New(
		apperror.CodeInvalidInput,
		"invalid user id",
		http.StatusBadRequest,
	)
	ErrInvalidGroupID = apperror.New(
		apperror.CodeInvalidInput,
		"invalid group id",
		http.StatusBadRequest,
	)
	ErrInvalidDuration = apperror.New(
		apperror.CodeInvalidInput,
		"duration_minutes must be one of 15, 30, 60, 120, 240",
		http.StatusBadRequest,
	)
	ErrNotPresent = apperror.New(
		apperror.CodeInvalidState,
		"user is not checked in at this group",
		http.StatusBadRequest,
	)
)
