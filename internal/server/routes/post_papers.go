package routes

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bio-nexus/backend/internal/server/middleware"
	"github.com/bio-nexus/backend/pkg/common"
	"github.com/bio-nexus/backend/pkg/index"
	"github.com/bio-nexus/backend/pkg/ingest"
)

// UploadPapersHandler indexes every file of a multipart upload. One bad
// file never fails the others.
func UploadPapersHandler(c echo.Context) error {
	type uploadPapersBody struct {
		Source string `form:"source"`
	}

	type uploadPapersResponse struct {
		Message string             `json:"message"`
		Indexed int                `json:"indexed"`
		Failed  int                `json:"failed"`
		Files   []index.FileResult `json:"files,omitempty"`
	}

	data := new(uploadPapersBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, uploadPapersResponse{Message: "Invalid request body"})
	}

	form, err := c.MultipartForm()
	if err != nil {
		return c.JSON(http.StatusBadRequest, uploadPapersResponse{Message: "Invalid request body"})
	}
	uploads := form.File["files"]
	if len(uploads) == 0 {
		return c.JSON(http.StatusBadRequest, uploadPapersResponse{Message: "No files provided"})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	inputs := make([]ingest.Input, 0, len(uploads))
	var rejected []index.FileResult
	for _, file := range uploads {
		content, err := readUpload(file, app.MaxFileSize)
		if err != nil {
			rejected = append(rejected, index.FileResult{FileName: file.Filename, Err: err, Error: err.Error()})
			continue
		}
		inputs = append(inputs, ingest.Input{FileName: file.Filename, Content: content, Source: data.Source})
	}

	results := append(app.Indexer.IndexAll(ctx, inputs), rejected...)

	res := uploadPapersResponse{Files: results}
	onlyFileErrors := true
	for _, r := range results {
		if r.Err == nil {
			res.Indexed++
			continue
		}
		res.Failed++
		if !index.IsFileError(r.Err) {
			onlyFileErrors = false
		}
	}
	res.Message = fmt.Sprintf("Indexed %d of %d files", res.Indexed, len(results))

	switch {
	case res.Indexed > 0:
		return c.JSON(http.StatusCreated, res)
	case onlyFileErrors:
		return c.JSON(http.StatusBadRequest, res)
	default:
		return c.JSON(http.StatusInternalServerError, res)
	}
}

// readUpload reads at most limit+1 bytes so the ingestor can reject
// oversized files by their real size.
func readUpload(file *multipart.FileHeader, limit int64) ([]byte, error) {
	if limit > 0 && file.Size > limit {
		return nil, common.NewValidationError("file", fmt.Sprintf("file exceeds %d MB", limit>>20))
	}
	src, err := file.Open()
	if err != nil {
		return nil, &common.ExtractionError{File: file.Filename, Err: err}
	}
	defer src.Close()

	r := io.Reader(src)
	if limit > 0 {
		r = io.LimitReader(src, limit+1)
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, &common.ExtractionError{File: file.Filename, Err: err}
	}
	return content, nil
}
