package api

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mirelo/sdsort/internal/jobs"
	"github.com/mirelo/sdsort/internal/tagger"
)

func (c *Controller) initTagRoutes() {
	c.Group.POST("/tag", c.StartTagging)
	c.Group.GET("/tag", c.LatestTagging)
	c.Group.GET("/tag/:id", c.GetTagging)
	c.Group.GET("/tags", c.ListTags)
	c.Group.POST("/tags/repair", c.RepairRatings)
	c.Group.GET("/tags/export", c.ExportTags)
	c.Group.POST("/tags/import", c.ImportTags)
	c.Group.POST("/tags/sidecars", c.ExportSidecars)
}

// StartTagging begins a background tagging job. Unset settings fall
// back to the configured tagger defaults.
func (c *Controller) StartTagging(ctx echo.Context) error {
	var opts tagger.Options
	if err := ctx.Bind(&opts); err != nil {
		return c.HandleError(ctx, err, "Invalid tagging request", http.StatusBadRequest)
	}

	c.applyTaggerDefaults(&opts.Settings)

	job, err := c.jobs.Begin(jobKindTag)
	if err != nil {
		return c.HandleError(ctx, err, "Tagging already in progress", http.StatusConflict)
	}

	go c.runTagging(job, opts)

	return ctx.JSON(http.StatusAccepted, job.Snapshot())
}

func (c *Controller) applyTaggerDefaults(settings *tagger.Settings) {
	cfg := c.cfg.Tagger
	if settings.ModelName == "" {
		settings.ModelName = cfg.ModelName
	}
	if settings.ModelPath == "" {
		settings.ModelPath = cfg.ModelPath
	}
	if settings.TagsPath == "" {
		settings.TagsPath = cfg.TagsPath
	}
	if settings.Threshold <= 0 {
		settings.Threshold = cfg.Threshold
	}
	if settings.CharacterThreshold <= 0 {
		settings.CharacterThreshold = cfg.CharacterThreshold
	}
}

func (c *Controller) runTagging(job *jobs.Job, opts tagger.Options) {
	result, err := c.runner.TagImages(context.Background(), job, opts)
	if err != nil {
		c.log.Error("Tagging failed: %v", err)
		job.Fail(err.Error())
		return
	}

	c.log.Info("Tagging complete: %d tagged, %d errors", result.Tagged, result.Errors)
	job.Done(fmt.Sprintf("tagged %d of %d images", result.Tagged, result.Total), result)
}

// GetTagging returns the state of a tagging job by identifier.
func (c *Controller) GetTagging(ctx echo.Context) error {
	job, ok := c.jobs.Get(ctx.Param("id"))
	if !ok {
		return c.HandleError(ctx, fmt.Errorf("job '%s' not found", ctx.Param("id")),
			"Tagging job not found", http.StatusNotFound)
	}
	return ctx.JSON(http.StatusOK, job.Snapshot())
}

// LatestTagging returns the most recently started tagging job.
func (c *Controller) LatestTagging(ctx echo.Context) error {
	job, ok := c.jobs.Latest(jobKindTag)
	if !ok {
		return c.HandleError(ctx, fmt.Errorf("no tagging jobs"), "No tagging has been started", http.StatusNotFound)
	}
	return ctx.JSON(http.StatusOK, job.Snapshot())
}

// ListTags returns the tag library with per-tag image counts.
func (c *Controller) ListTags(ctx echo.Context) error {
	counts, err := c.library.TagCounts(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load tag counts", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, counts)
}

// RepairRatings removes duplicate rating tags from historical rows,
// keeping the highest-confidence rating per image.
func (c *Controller) RepairRatings(ctx echo.Context) error {
	repaired, err := c.store.RepairRatings(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to repair ratings", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{"repaired": repaired})
}

// ExportTags streams all tagged images' tag sets as JSON.
func (c *Controller) ExportTags(ctx echo.Context) error {
	data, err := tagger.ExportTags(ctx.Request().Context(), c.store)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to export tags", http.StatusInternalServerError)
	}
	return ctx.Blob(http.StatusOK, echo.MIMEApplicationJSON, data)
}

// ImportTags applies a previously exported tag set, matching by path.
func (c *Controller) ImportTags(ctx echo.Context) error {
	overwrite := ctx.QueryParam("overwrite") == "true"

	data, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to read import body", http.StatusBadRequest)
	}

	imported, err := tagger.ImportTags(ctx.Request().Context(), c.store, data, overwrite)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to import tags", http.StatusBadRequest)
	}
	return ctx.JSON(http.StatusOK, map[string]any{"imported": imported})
}

// ExportSidecars writes .txt tag files next to each tagged image.
func (c *Controller) ExportSidecars(ctx echo.Context) error {
	var opts tagger.SidecarOptions
	if err := ctx.Bind(&opts); err != nil {
		return c.HandleError(ctx, err, "Invalid sidecar request", http.StatusBadRequest)
	}

	written, err := tagger.ExportSidecars(ctx.Request().Context(), c.store, opts)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to export sidecar files", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{"written": written})
}
