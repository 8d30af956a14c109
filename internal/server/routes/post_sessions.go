package routes

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/bio-nexus/backend/internal/server/middleware"
	"github.com/bio-nexus/backend/pkg/common"
	"github.com/bio-nexus/backend/pkg/query"
)

func CreateSessionHandler(c echo.Context) error {
	type createSessionResponse struct {
		Message string          `json:"message"`
		Session *common.Session `json:"session,omitempty"`
	}

	app := c.(*middleware.AppContext).App
	session, err := app.Query.CreateSession(c.Request().Context())
	if err != nil {
		return respondError(c, "CreateSession", err)
	}

	return c.JSON(http.StatusCreated, createSessionResponse{Message: "Session created", Session: &session})
}

// AskHandler answers a question inside a session. Provider outages degrade
// the answer instead of failing the request.
func AskHandler(c echo.Context) error {
	sessionID := strings.TrimSpace(c.Param("id"))
	if sessionID == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "Invalid request params", Field: "id"})
	}

	data := new(query.AskRequest)
	if ok, err := bindAndValidate(c, data); !ok {
		return err
	}

	app := c.(*middleware.AppContext).App
	answer, err := app.Query.Ask(c.Request().Context(), sessionID, *data)
	if err != nil {
		return respondError(c, "Ask", err)
	}

	return c.JSON(http.StatusOK, answer)
}
