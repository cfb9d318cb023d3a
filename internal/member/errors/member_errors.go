package membererrors

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
	ErrAlreadyMember = apperror.New(
		apperror.CodeConflict,
		"user is already a member of this group",
		http.StatusConflict,
	)
	ErrMemberNotFound = apperror.New(
		apperror.CodeNotFound,
		"membership not found",
		http.StatusNotFound,
	)
	ErrDisplayNameRequired = apperror.New(
		apperror.CodeInvalidInput,
		"display_name is required",
		http.StatusBadRequest,
	)
)
