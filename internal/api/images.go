package api

import (
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mirelo/sdsort/internal/filter"
	"github.com/mirelo/sdsort/internal/scanner"
	"github.com/mirelo/sdsort/pkg/db/models"
)

func (c *Controller) initImageRoutes() {
	c.Group.GET("/images", c.QueryImages)
	c.Group.POST("/images/query", c.QueryImages)
	c.Group.GET("/images/:id", c.GetImage)
	c.Group.DELETE("/images/:id", c.DeleteImage)
	c.Group.GET("/images/:id/file", c.ServeImageFile)
	c.Group.POST("/move", c.MoveImage)
	c.Group.POST("/batch-move", c.BatchMove)
	c.Group.POST("/reset", c.ResetCatalog)
}

// imagesResponse wraps a query result with its unpaginated total.
type imagesResponse struct {
	Images []models.Image `json:"images"`
	Total  int            `json:"total"`
}

// QueryImages runs a combined filter/sort/paginate query. GET binds
// query parameters, POST binds a JSON body.
func (c *Controller) QueryImages(ctx echo.Context) error {
	var req filter.Request
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid query parameters", http.StatusBadRequest)
	}

	images, err := c.engine.Query(ctx.Request().Context(), req)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to query images", http.StatusInternalServerError)
	}

	total := len(images)
	if req.Limit > 0 || req.Offset > 0 {
		total, err = c.engine.Count(ctx.Request().Context(), req)
		if err != nil {
			return c.HandleError(ctx, err, "Failed to count images", http.StatusInternalServerError)
		}
	}

	return ctx.JSON(http.StatusOK, imagesResponse{Images: images, Total: total})
}

// GetImage returns a single image record with its tags.
func (c *Controller) GetImage(ctx echo.Context) error {
	id, err := parseID(ctx.Param("id"))
	if err != nil {
		return c.HandleError(ctx, err, "Invalid image id", http.StatusBadRequest)
	}

	img, err := c.store.GetImage(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err, "Image not found", http.StatusNotFound)
	}

	tags, err := c.store.GetImageTags(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load tags", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"image": img,
		"tags":  tags,
	})
}

// DeleteImage removes an image record from the catalog. The file on
// disk is untouched.
func (c *Controller) DeleteImage(ctx echo.Context) error {
	id, err := parseID(ctx.Param("id"))
	if err != nil {
		return c.HandleError(ctx, err, "Invalid image id", http.StatusBadRequest)
	}

	if err := c.store.DeleteImage(ctx.Request().Context(), id); err != nil {
		return c.HandleError(ctx, err, "Failed to delete image", http.StatusInternalServerError)
	}

	return ctx.NoContent(http.StatusNoContent)
}

// ServeImageFile streams the image file itself.
func (c *Controller) ServeImageFile(ctx echo.Context) error {
	id, err := parseID(ctx.Param("id"))
	if err != nil {
		return c.HandleError(ctx, err, "Invalid image id", http.StatusBadRequest)
	}

	img, err := c.store.GetImage(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err, "Image not found", http.StatusNotFound)
	}

	if _, err := os.Stat(img.Path); err != nil {
		return c.HandleError(ctx, err, "Image file is missing on disk", http.StatusNotFound)
	}

	return ctx.File(img.Path)
}

type moveRequest struct {
	ID     uint   `json:"id"`
	Folder string `json:"folder"`
}

// MoveImage moves a single image into a destination folder and updates
// the catalog path.
func (c *Controller) MoveImage(ctx echo.Context) error {
	var req moveRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid move request", http.StatusBadRequest)
	}
	if err := scanner.ValidateFolderPath(req.Folder, true); err != nil {
		return c.HandleError(ctx, err, "Invalid destination folder", http.StatusBadRequest)
	}

	img, err := c.store.GetImage(ctx.Request().Context(), req.ID)
	if err != nil {
		return c.HandleError(ctx, err, "Image not found", http.StatusNotFound)
	}

	newPath, err := c.scanner.MoveImage(ctx.Request().Context(), img.ID, img.Path, req.Folder)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to move image", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"id":   img.ID,
		"path": newPath,
	})
}

type batchMoveRequest struct {
	Filter filter.Request `json:"filter"`
	Folder string         `json:"folder"`
}

// BatchMove moves every image matching a filter request into a
// destination folder. Per-image failures are counted, never fatal.
func (c *Controller) BatchMove(ctx echo.Context) error {
	var req batchMoveRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid batch move request", http.StatusBadRequest)
	}
	if err := scanner.ValidateFolderPath(req.Folder, true); err != nil {
		return c.HandleError(ctx, err, "Invalid destination folder", http.StatusBadRequest)
	}

	images, err := c.engine.Query(ctx.Request().Context(), req.Filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to query images", http.StatusInternalServerError)
	}

	moved := 0
	errors := 0
	for i := range images {
		img := &images[i]
		if _, err := c.scanner.MoveImage(ctx.Request().Context(), img.ID, img.Path, req.Folder); err != nil {
			c.log.Error("Failed to move '%s': %v", img.Path, err)
			errors++
			continue
		}
		moved++
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"total":  len(images),
		"moved":  moved,
		"errors": errors,
	})
}

// ResetCatalog wipes every image and tag record. Files on disk are
// untouched; a rescan rebuilds the catalog.
func (c *Controller) ResetCatalog(ctx echo.Context) error {
	if ctx.QueryParam("confirm") != "true" {
		return c.HandleError(ctx, fmt.Errorf("confirm=true is required"),
			"Reset must be confirmed", http.StatusBadRequest)
	}

	if err := c.store.ClearAll(ctx.Request().Context()); err != nil {
		return c.HandleError(ctx, err, "Failed to reset catalog", http.StatusInternalServerError)
	}

	c.log.Warn("Catalog reset: all image and tag records removed")
	return ctx.NoContent(http.StatusNoContent)
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
