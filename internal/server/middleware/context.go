package middleware

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/bio-nexus/backend/pkg/agent"
	"github.com/bio-nexus/backend/pkg/index"
	"github.com/bio-nexus/backend/pkg/query"
	"github.com/bio-nexus/backend/pkg/retrieval"
	"github.com/bio-nexus/backend/pkg/store"
)

// FileLinker hands out temporary download links for archived documents.
type FileLinker interface {
	DownloadLink(ctx context.Context, key string) (string, error)
}

// App holds the services the route handlers work with. Files is nil when
// no archive is configured.
type App struct {
	Indexer     *index.Indexer
	Papers      store.PaperStore
	Retriever   *retrieval.Retriever
	Classifier  *agent.Classifier
	Query       *query.Service
	Files       FileLinker
	MaxFileSize int64
}

type AppContext struct {
	echo.Context
	App *App
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app}
			return next(cc)
		}
	}
}
