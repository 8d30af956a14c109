package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bio-nexus/backend/internal/server/middleware"
	"github.com/bio-nexus/backend/pkg/common"
	"github.com/bio-nexus/backend/pkg/logger"
	"github.com/bio-nexus/backend/pkg/store"
)

func GetPapersHandler(c echo.Context) error {
	type getPapersParams struct {
		Limit  int `query:"limit" validate:"omitempty,min=1"`
		Offset int `query:"offset" validate:"omitempty,min=0"`
	}

	type getPapersResponse struct {
		Message string         `json:"message"`
		Total   int            `json:"total"`
		Papers  []common.Paper `json:"papers"`
	}

	params := new(getPapersParams)
	if ok, err := bindAndValidate(c, params); !ok {
		return err
	}

	app := c.(*middleware.AppContext).App
	papers, total, err := app.Papers.ListPapers(c.Request().Context(), store.ClampLimit(params.Limit, 20, 100), params.Offset)
	if err != nil {
		return respondError(c, "GetPapers", err)
	}
	for i := range papers {
		papers[i].FullText = ""
	}
	if papers == nil {
		papers = []common.Paper{}
	}

	return c.JSON(http.StatusOK, getPapersResponse{Message: "OK", Total: total, Papers: papers})
}

// GetPaperHandler returns one paper with its chunk count and, when the raw
// document is archived, a temporary download link.
func GetPaperHandler(c echo.Context) error {
	type getPaperParams struct {
		ID string `param:"id" validate:"required"`
	}

	type getPaperResponse struct {
		Message     string        `json:"message"`
		Paper       *common.Paper `json:"paper,omitempty"`
		Chunks      int           `json:"chunks"`
		DownloadURL string        `json:"download_url,omitempty"`
	}

	params := new(getPaperParams)
	if ok, err := bindAndValidate(c, params); !ok {
		return err
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	paper, err := app.Papers.GetPaper(ctx, params.ID)
	if err != nil {
		return respondError(c, "GetPaper", err)
	}
	chunks, err := app.Papers.GetChunks(ctx, paper.ID)
	if err != nil {
		return respondError(c, "GetPaper", err)
	}
	paper.FullText = ""

	res := getPaperResponse{Message: "OK", Paper: &paper, Chunks: len(chunks)}
	if app.Files != nil && paper.File.StorageKey != "" {
		link, err := app.Files.DownloadLink(ctx, paper.File.StorageKey)
		if err != nil {
			logger.Warn("[Server][GetPaper] Failed to presign download link", "paper_id", paper.ID, "err", err)
		} else {
			res.DownloadURL = link
		}
	}

	return c.JSON(http.StatusOK, res)
}
