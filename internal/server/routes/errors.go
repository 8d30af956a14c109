package routes

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"github.com/bio-nexus/backend/pkg/common"
	"github.com/bio-nexus/backend/pkg/logger"
	"github.com/bio-nexus/backend/pkg/query"
)

type errorResponse struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// bindAndValidate binds the request into data and runs the struct
// validator. A failure has already been written to the response when
// ok is false.
func bindAndValidate(c echo.Context, data any) (ok bool, err error) {
	if err := c.Bind(data); err != nil {
		return false, c.JSON(http.StatusBadRequest, errorResponse{Message: "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return false, c.JSON(http.StatusBadRequest, validationResponse(err))
	}
	return true, nil
}

func validationResponse(err error) errorResponse {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return errorResponse{Message: "Invalid request body"}
	}
	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, fmt.Sprintf("%s failed on %s", strings.ToLower(f.Field()), f.Tag()))
	}
	return errorResponse{
		Message: "Invalid request body: " + strings.Join(msgs, ", "),
		Field:   strings.ToLower(fields[0].Field()),
	}
}

// respondError maps service errors onto HTTP responses. Unknown errors are
// logged and hidden behind a generic message.
func respondError(c echo.Context, op string, err error) error {
	var ve *common.ValidationError
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, errorResponse{Message: ve.Error(), Field: ve.Field})
	case common.IsNotFound(err):
		return c.JSON(http.StatusNotFound, errorResponse{Message: err.Error()})
	case errors.Is(err, query.ErrGraphUnavailable):
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Message: "Knowledge graph is not available"})
	default:
		logger.Error(fmt.Sprintf("[Server][%s] Request failed", op), "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Message: "Internal server error"})
	}
}
