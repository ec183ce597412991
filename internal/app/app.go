// Package app provides application initialization and dependency wiring.
//
// App is the container holding every long-lived component: the database
// pool, the Genkit instance, the ingestion pipeline, conversation
// memory, and the answering orchestrator. Setup builds them in
// dependency order; Close releases them.
package app

import (
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docchat/docchat/api"
	"github.com/docchat/docchat/internal/answer"
	"github.com/docchat/docchat/internal/config"
	"github.com/docchat/docchat/internal/index"
	"github.com/docchat/docchat/internal/ingest"
	"github.com/docchat/docchat/internal/log"
	"github.com/docchat/docchat/internal/memory"
	"github.com/docchat/docchat/internal/retrieval"
)

// App is the application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit *genkit.Genkit
	Pool   *pgxpool.Pool

	Index        *index.Index
	Pipeline     *ingest.Pipeline
	Memory       *memory.Store
	Retrieval    *retrieval.Engine
	Orchestrator *answer.Orchestrator
	Server       *api.Server
}

// Close releases application resources.
func (a *App) Close() {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
