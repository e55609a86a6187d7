package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rorbcloud/calibration-backend/internal/types"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondKindError maps the error taxonomy onto HTTP status codes.
func RespondKindError(c *gin.Context, err error) {
	kind := types.KindOf(err)
	switch kind {
	case types.KindValidation, types.KindProtocol:
		RespondError(c, http.StatusBadRequest, string(kind), err)
	case types.KindAuth:
		RespondError(c, http.StatusUnauthorized, string(kind), err)
	case types.KindQuotaExceeded:
		RespondError(c, http.StatusTooManyRequests, string(kind), err)
	case types.KindNotFound:
		RespondError(c, http.StatusNotFound, string(kind), err)
	default:
		RespondError(c, http.StatusInternalServerError, string(types.KindStorage), err)
	}
}
