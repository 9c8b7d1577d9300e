package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"loanaudit/domain/core"
	apperrors "loanaudit/internal/errors"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Column string `json:"column,omitempty"`
	Stage  string `json:"stage,omitempty"`
}

func statusFor(code string) int {
	switch code {
	case apperrors.CodeInvalidColumnState,
		apperrors.CodeConfigOutOfRange,
		apperrors.CodeInvalidInput,
		apperrors.CodeValidationError,
		apperrors.CodeConfigInvalid:
		return http.StatusBadRequest
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	code := apperrors.CodeInternalError
	switch {
	case apperrors.IsAppError(err):
		code = apperrors.GetCode(err)
	case core.IsNotFoundError(err):
		code = apperrors.CodeNotFound
	}
	stage, column := apperrors.Attribution(err)
	c.JSON(statusFor(code), ErrorResponse{
		Error:  err.Error(),
		Code:   code,
		Column: column,
		Stage:  stage,
	})
}

func badRequest(c *gin.Context, err error) {
	writeError(c, apperrors.WithCode(apperrors.CodeInvalidInput, err))
}
