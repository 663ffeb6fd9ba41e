package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"agora/internal/market/domain"
)

// APIResponse is the uniform JSON envelope for every endpoint.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

func respondBadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, APIResponse{Success: false, Error: msg})
}

// respondError maps domain errors onto HTTP statuses. Conflicting state and
// duplicate writes are 409, payment rejections are 402, everything
// unrecognized is a 500 without the internal detail.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, APIResponse{Success: false, Error: err.Error()})
	case domain.IsInvalidInput(err):
		c.JSON(http.StatusBadRequest, APIResponse{Success: false, Error: err.Error()})
	case errors.Is(err, domain.ErrPaymentInvalid):
		c.JSON(http.StatusPaymentRequired, APIResponse{Success: false, Error: err.Error()})
	case domain.IsInvalidState(err),
		errors.Is(err, domain.ErrAgentExists),
		errors.Is(err, domain.ErrDuplicateVote),
		errors.Is(err, domain.ErrDisputeExists),
		errors.Is(err, domain.ErrDisputeResolved):
		c.JSON(http.StatusConflict, APIResponse{Success: false, Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, APIResponse{Success: false, Error: "internal error"})
	}
}
