package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mirelo/sdsort/internal/jobs"
	"github.com/mirelo/sdsort/internal/scanner"
)

func (c *Controller) initScanRoutes() {
	c.Group.POST("/scan", c.StartScan)
	c.Group.GET("/scan", c.LatestScan)
	c.Group.GET("/scan/:id", c.GetScan)
}

type scanRequest struct {
	Folder    string `json:"folder"`
	Recursive bool   `json:"recursive"`
}

// StartScan begins a background scan job over a folder. Only one scan
// may run at a time.
func (c *Controller) StartScan(ctx echo.Context) error {
	var req scanRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid scan request", http.StatusBadRequest)
	}
	if err := scanner.ValidateFolderPath(req.Folder, false); err != nil {
		return c.HandleError(ctx, err, "Invalid scan folder", http.StatusBadRequest)
	}

	job, err := c.jobs.Begin(jobKindScan)
	if err != nil {
		return c.HandleError(ctx, err, "Scan already in progress", http.StatusConflict)
	}

	go c.runScan(job, req)

	return ctx.JSON(http.StatusAccepted, job.Snapshot())
}

// runScan executes the scan on its own goroutine, detached from the
// request context.
func (c *Controller) runScan(job *jobs.Job, req scanRequest) {
	result, err := c.scanner.ScanFolder(context.Background(), req.Folder, req.Recursive,
		func(current, total int, filename string) {
			job.Progress(current, total, filename)
		})
	if err != nil {
		c.log.Error("Scan of '%s' failed: %v", req.Folder, err)
		job.Fail(err.Error())
		return
	}

	c.log.Info("Scan of '%s' complete: %d indexed, %d errors", req.Folder, result.Indexed, result.Errors)
	job.Done(fmt.Sprintf("indexed %d of %d images", result.Indexed, result.Total), result)
}

// GetScan returns the state of a scan job by identifier.
func (c *Controller) GetScan(ctx echo.Context) error {
	job, ok := c.jobs.Get(ctx.Param("id"))
	if !ok {
		return c.HandleError(ctx, fmt.Errorf("job '%s' not found", ctx.Param("id")),
			"Scan job not found", http.StatusNotFound)
	}
	return ctx.JSON(http.StatusOK, job.Snapshot())
}

// LatestScan returns the most recently started scan job.
func (c *Controller) LatestScan(ctx echo.Context) error {
	job, ok := c.jobs.Latest(jobKindScan)
	if !ok {
		return c.HandleError(ctx, fmt.Errorf("no scan jobs"), "No scan has been started", http.StatusNotFound)
	}
	return ctx.JSON(http.StatusOK, job.Snapshot())
}
