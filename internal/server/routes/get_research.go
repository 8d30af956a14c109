package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bio-nexus/backend/internal/server/middleware"
	"github.com/bio-nexus/backend/pkg/common"
	"github.com/bio-nexus/backend/pkg/graphstore"
)

func GetRiskAnalysesHandler(c echo.Context) error {
	type getRiskParams struct {
		Limit int `query:"limit" validate:"omitempty,min=1"`
	}

	type getRiskResponse struct {
		Message  string                      `json:"message"`
		Analyses []common.RiskAnalysisRecord `json:"analyses"`
	}

	params := new(getRiskParams)
	if ok, err := bindAndValidate(c, params); !ok {
		return err
	}

	app := c.(*middleware.AppContext).App
	records, err := app.Query.RiskHistory(c.Request().Context(), params.Limit)
	if err != nil {
		return respondError(c, "GetRiskAnalyses", err)
	}
	if records == nil {
		records = []common.RiskAnalysisRecord{}
	}

	return c.JSON(http.StatusOK, getRiskResponse{Message: "OK", Analyses: records})
}

func GetGraphStatsHandler(c echo.Context) error {
	type graphStatsResponse struct {
		Message string            `json:"message"`
		Stats   *graphstore.Stats `json:"stats,omitempty"`
	}

	app := c.(*middleware.AppContext).App
	stats, err := app.Query.GraphStats(c.Request().Context())
	if err != nil {
		return respondError(c, "GetGraphStats", err)
	}

	return c.JSON(http.StatusOK, graphStatsResponse{Message: "OK", Stats: &stats})
}

func GetRelatedTopicsHandler(c echo.Context) error {
	type relatedParams struct {
		Query string `query:"q" validate:"required"`
		Limit int    `query:"limit" validate:"omitempty,min=1"`
	}

	type relatedResponse struct {
		Message string   `json:"message"`
		Topics  []string `json:"topics"`
	}

	params := new(relatedParams)
	if ok, err := bindAndValidate(c, params); !ok {
		return err
	}

	app := c.(*middleware.AppContext).App
	topics, err := app.Query.RelatedTopics(c.Request().Context(), params.Query, params.Limit)
	if err != nil {
		return respondError(c, "GetRelatedTopics", err)
	}
	if topics == nil {
		topics = []string{}
	}

	return c.JSON(http.StatusOK, relatedResponse{Message: "OK", Topics: topics})
}

func GetSuggestionsHandler(c echo.Context) error {
	type suggestionsResponse struct {
		Message     string   `json:"message"`
		Suggestions []string `json:"suggestions"`
	}

	app := c.(*middleware.AppContext).App
	suggestions, err := app.Query.Suggestions(c.Request().Context())
	if err != nil {
		return respondError(c, "GetSuggestions", err)
	}

	return c.JSON(http.StatusOK, suggestionsResponse{Message: "OK", Suggestions: suggestions})
}
