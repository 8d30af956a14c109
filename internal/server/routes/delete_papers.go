package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bio-nexus/backend/internal/server/middleware"
)

func DeletePaperHandler(c echo.Context) error {
	type deletePaperParams struct {
		ID string `param:"id" validate:"required"`
	}

	type deletePaperResponse struct {
		Message string `json:"message"`
	}

	params := new(deletePaperParams)
	if ok, err := bindAndValidate(c, params); !ok {
		return err
	}

	app := c.(*middleware.AppContext).App
	if err := app.Indexer.Delete(c.Request().Context(), params.ID); err != nil {
		return respondError(c, "DeletePaper", err)
	}

	return c.JSON(http.StatusOK, deletePaperResponse{Message: "Paper deleted successfully"})
}
