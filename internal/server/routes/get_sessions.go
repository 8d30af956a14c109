package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bio-nexus/backend/internal/server/middleware"
	"github.com/bio-nexus/backend/pkg/common"
)

func GetSessionTurnsHandler(c echo.Context) error {
	type getTurnsParams struct {
		ID    string `param:"id" validate:"required"`
		Limit int    `query:"limit" validate:"omitempty,min=1"`
	}

	type getTurnsResponse struct {
		Message string                    `json:"message"`
		Turns   []common.ConversationTurn `json:"turns"`
	}

	params := new(getTurnsParams)
	if ok, err := bindAndValidate(c, params); !ok {
		return err
	}

	app := c.(*middleware.AppContext).App
	turns, err := app.Query.Turns(c.Request().Context(), params.ID, params.Limit)
	if err != nil {
		return respondError(c, "GetSessionTurns", err)
	}
	if turns == nil {
		turns = []common.ConversationTurn{}
	}

	return c.JSON(http.StatusOK, getTurnsResponse{Message: "OK", Turns: turns})
}
