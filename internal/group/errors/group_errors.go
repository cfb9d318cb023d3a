package grouperrors

import (
	"net/http"

	"go-presence/internal/shared/apperror"
)

const CodeBoundaryInvalid = "BOUNDARY_INVALID"

var (
	ErrInvalidGroupID = apperror.New(
		apperror.CodeInvalidInput,
		"invalid group id",
		http.StatusBadRequest,
	)
	ErrInvalidOwnerID = apperror.New(
		apperror.CodeInvalidInput,
		"invalid owner id",
		http.StatusBadRequest,
	)
	ErrGroupNotFound = apperror.New(
		apperror.CodeNotFound,
		"group not found",
		http.StatusNotFound,
	)
	ErrNotGroupOwner = apperror.New(
		apperror.CodeForbidden,
		"only the group owner may change the group",
		http.StatusForbidden,
	)
	ErrInvalidDisplayMode = apperror.New(
		apperror.CodeInvalidInput,
		"display_mode must be COUNT or NAMES",
		http.StatusBadRequest,
	)
)

// BoundaryInvalid wraps a geometry validation failure. The group is never
// partially persisted: validation rejects before any write happens.
func BoundaryInvalid(err error) *apperror.AppError {
	return apperror.Wrap(err, CodeBoundaryInvalid, err.Error(), http.StatusBadRequest)
}
