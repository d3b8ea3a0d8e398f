package httpadapter

import (
	"net/http"

	"github.com/kirillkom/fund-nav-pipeline/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrRecordNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrUnrecognizedFormat),
		domain.IsKind(err, domain.ErrIncompleteFields),
		domain.IsKind(err, domain.ErrRowCoercion):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrDuplicateRecord):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
