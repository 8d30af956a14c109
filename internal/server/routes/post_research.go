package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bio-nexus/backend/internal/server/middleware"
	"github.com/bio-nexus/backend/pkg/common"
	"github.com/bio-nexus/backend/pkg/query"
)

func HypothesesHandler(c echo.Context) error {
	data := new(query.HypothesisRequest)
	if ok, err := bindAndValidate(c, data); !ok {
		return err
	}

	app := c.(*middleware.AppContext).App
	res, err := app.Query.Hypotheses(c.Request().Context(), *data)
	if err != nil {
		return respondError(c, "Hypotheses", err)
	}

	return c.JSON(http.StatusOK, res)
}

// RiskAnalysisHandler assesses a mission profile and stores the result.
func RiskAnalysisHandler(c echo.Context) error {
	type riskBody struct {
		Name           string   `json:"name"`
		DurationDays   int      `json:"duration_days" validate:"required,min=1"`
		Destination    string   `json:"destination"`
		CrewSize       int      `json:"crew_size" validate:"required,min=1"`
		RadiationLevel string   `json:"radiation_level"`
		GravityLevel   string   `json:"gravity_level"`
		SpecialFactors []string `json:"special_factors"`
	}

	data := new(riskBody)
	if ok, err := bindAndValidate(c, data); !ok {
		return err
	}

	app := c.(*middleware.AppContext).App
	res, err := app.Query.AnalyzeRisk(c.Request().Context(), common.MissionProfile{
		Name:           data.Name,
		DurationDays:   data.DurationDays,
		Destination:    data.Destination,
		CrewSize:       data.CrewSize,
		RadiationLevel: data.RadiationLevel,
		GravityLevel:   data.GravityLevel,
		SpecialFactors: data.SpecialFactors,
	})
	if err != nil {
		return respondError(c, "RiskAnalysis", err)
	}

	return c.JSON(http.StatusCreated, res)
}
