package sessionerrors

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
	ErrNoSession = apperror.New(
		apperror.CodeInvalidState,
		"no active session for this user",
		http.StatusConflict,
	)
	ErrNoContinuousPermission = apperror.New(
		apperror.CodeForbidden,
		"session has no continuous location permission",
		http.StatusForbidden,
	)
	ErrRegionNotMonitored = apperror.New(
		apperror.CodeInvalidState,
		"region is not monitored by this session",
		http.StatusConflict,
	)
	ErrInvalidCoordinate = apperror.New(
		apperror.CodeInvalidInput,
		"latitude or longitude out of range",
		http.StatusBadRequest,
	)
)
