// Package api wires the HTTP control surface.
//
// @title ETL Pipeline Scheduler API
// @version 1.0
// @description Run, schedule and inspect ETL pipelines.
// @BasePath /api/v1
package api

import (
	httpSwagger "github.com/swaggo/http-swagger"

	"go-data-pipeline/internal/api/handler"
	"go-data-pipeline/pkg/router"

	_ "go-data-pipeline/docs"
)

func RegisterRoutes(r *router.Router, h *handler.PipelineHandler) {
	r.GET("/api/v1/pipelines", h.ListPipelines)
	r.POST("/api/v1/pipelines", h.CreatePipeline)
	// More specific routes first
	r.POST("/api/v1/pipelines/validate", h.ValidatePipeline)
	r.POST("/api/v1/pipelines/*/run", h.RunPipeline)
	r.PUT("/api/v1/pipelines/*/schedule", h.UpdateSchedule)
	r.POST("/api/v1/pipelines/*/enable", h.EnablePipeline)
	r.POST("/api/v1/pipelines/*/disable", h.DisablePipeline)
	r.GET("/api/v1/pipelines/*/history", h.GetPipelineHistory)
	// Generic pipeline routes last
	r.GET("/api/v1/pipelines/*", h.GetPipeline)
	r.DELETE("/api/v1/pipelines/*", h.DeletePipeline)

	r.GET("/api/v1/history", h.GetHistory)
	r.GET("/api/v1/status", h.GetStatus)
	r.GET("/api/v1/stats", h.GetStats)
	r.POST("/api/v1/scheduler/restart", h.RestartScheduler)

	r.Handle("/swagger/", httpSwagger.WrapHandler)
}
