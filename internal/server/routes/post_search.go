package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bio-nexus/backend/internal/server/middleware"
	"github.com/bio-nexus/backend/pkg/agent"
	"github.com/bio-nexus/backend/pkg/retrieval"
)

func SearchHandler(c echo.Context) error {
	data := new(retrieval.Request)
	if ok, err := bindAndValidate(c, data); !ok {
		return err
	}
	if data.Strategy != "" && !data.Strategy.Valid() {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "Unknown search strategy", Field: "strategy"})
	}

	app := c.(*middleware.AppContext).App
	res, err := app.Retriever.Retrieve(c.Request().Context(), *data)
	if err != nil {
		return respondError(c, "Search", err)
	}
	if res.Results == nil {
		res.Results = []retrieval.Result{}
	}

	return c.JSON(http.StatusOK, res)
}

// ClassifyHandler runs only the classification pipeline. It always
// answers; degraded stages are reported in the stage list.
func ClassifyHandler(c echo.Context) error {
	type classifyBody struct {
		Query string `json:"query" validate:"required"`
	}

	type classifyResponse struct {
		Message        string               `json:"message"`
		Classification agent.Classification `json:"classification"`
		Degraded       bool                 `json:"degraded"`
	}

	data := new(classifyBody)
	if ok, err := bindAndValidate(c, data); !ok {
		return err
	}

	app := c.(*middleware.AppContext).App
	cl := app.Classifier.Classify(c.Request().Context(), data.Query)

	return c.JSON(http.StatusOK, classifyResponse{Message: "OK", Classification: cl, Degraded: cl.Degraded()})
}
