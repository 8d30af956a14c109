package server

import (
	"net/http"

	"github.com/bio-nexus/backend/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	apiRoutes := e.Group("/api")

	// Paper routes
	apiRoutes.GET("/papers", routes.GetPapersHandler)
	apiRoutes.POST("/papers", routes.UploadPapersHandler)
	apiRoutes.GET("/papers/:id", routes.GetPaperHandler)
	apiRoutes.DELETE("/papers/:id", routes.DeletePaperHandler)

	// Retrieval routes
	apiRoutes.POST("/search", routes.SearchHandler)
	apiRoutes.POST("/classify", routes.ClassifyHandler)

	// Session routes
	apiRoutes.POST("/sessions", routes.CreateSessionHandler)
	apiRoutes.GET("/sessions/:id/turns", routes.GetSessionTurnsHandler)
	apiRoutes.POST("/sessions/:id/ask", routes.AskHandler)

	// Research routes
	apiRoutes.POST("/hypotheses", routes.HypothesesHandler)
	apiRoutes.POST("/risk", routes.RiskAnalysisHandler)
	apiRoutes.GET("/risk", routes.GetRiskAnalysesHandler)

	// Graph routes
	apiRoutes.GET("/graph/stats", routes.GetGraphStatsHandler)
	apiRoutes.GET("/graph/related", routes.GetRelatedTopicsHandler)
	apiRoutes.GET("/suggestions", routes.GetSuggestionsHandler)
}
