// Package api exposes the job registry over HTTP: running jobs, their
// progress, stop controls and pipeline statistics.
package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/mapsection/engine"
)

// API wires the Forge-style HTTP handlers for an engine.
type API struct {
	eng    *engine.Engine
	router forge.Router
}

// New creates an API for eng. A nil router is replaced by a new one when
// Handler is called.
func New(eng *engine.Engine, router forge.Router) *API {
	return &API{eng: eng, router: router}
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	if a.router == nil {
		a.router = forge.NewRouter()
	}
	a.RegisterRoutes(a.router)
	return a.router.Handler()
}

// RegisterRoutes registers all routes into the given Forge router with
// their OpenAPI metadata.
func (a *API) RegisterRoutes(router forge.Router) {
	a.registerJobRoutes(router)
	a.registerStatsRoutes(router)
}

func (a *API) registerJobRoutes(router forge.Router) {
	g := router.Group("/v1", forge.WithGroupTags("jobs"))

	_ = g.GET("/jobs", a.listJobs,
		forge.WithSummary("List jobs"),
		forge.WithDescription("Returns every registered viewport load, oldest first."),
		forge.WithOperationID("listJobs"),
		forge.WithRequestSchema(ListJobsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Job list", []engine.JobStatus{}),
		forge.WithErrorResponses(),
	)

	_ = g.GET("/jobs/:jobNumber", a.getJob,
		forge.WithSummary("Get job"),
		forge.WithDescription("Returns the progress of a registered job."),
		forge.WithOperationID("getJob"),
		forge.WithResponseSchema(http.StatusOK, "Job status", engine.JobStatus{}),
		forge.WithErrorResponses(),
	)

	_ = g.POST("/jobs/:jobNumber/stop", a.stopJob,
		forge.WithSummary("Stop job"),
		forge.WithDescription("Stops submitting the job's sections and drops its queued work."),
		forge.WithOperationID("stopJob"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	)
}

func (a *API) registerStatsRoutes(router forge.Router) {
	g := router.Group("/v1", forge.WithGroupTags("stats"))

	_ = g.GET("/stats", a.stats,
		forge.WithSummary("Pipeline stats"),
		forge.WithDescription("Returns registry, backend and progress broker statistics."),
		forge.WithOperationID("pipelineStats"),
		forge.WithResponseSchema(http.StatusOK, "Pipeline statistics", StatsResponse{}),
		forge.WithErrorResponses(),
	)
}
