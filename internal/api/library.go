package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

func (c *Controller) initLibraryRoutes() {
	c.Group.GET("/library/prompts", c.PromptLibrary)
	c.Group.GET("/library/loras", c.LoraLibrary)
	c.Group.GET("/generators", c.GeneratorCounts)
	c.Group.GET("/checkpoints", c.CheckpointCounts)
	c.Group.GET("/stats", c.Stats)
}

// PromptLibrary returns per-token image counts over all prompts.
func (c *Controller) PromptLibrary(ctx echo.Context) error {
	minCount := queryInt(ctx, "min_count", 2)

	entries, err := c.library.PromptTokenCounts(ctx.Request().Context(), minCount)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to build prompt library", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, entries)
}

// LoraLibrary returns per-lora image counts.
func (c *Controller) LoraLibrary(ctx echo.Context) error {
	minCount := queryInt(ctx, "min_count", 1)

	entries, err := c.library.LoraCounts(ctx.Request().Context(), minCount)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to build lora library", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, entries)
}

// GeneratorCounts returns image counts per generator family.
func (c *Controller) GeneratorCounts(ctx echo.Context) error {
	counts, err := c.library.GeneratorCounts(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load generator counts", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, counts)
}

// CheckpointCounts returns image counts per checkpoint.
func (c *Controller) CheckpointCounts(ctx echo.Context) error {
	limit := queryInt(ctx, "limit", 0)

	counts, err := c.library.CheckpointCounts(ctx.Request().Context(), limit)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load checkpoint counts", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, counts)
}

// Stats returns the overall catalog summary.
func (c *Controller) Stats(ctx echo.Context) error {
	stats, err := c.library.Stats(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load stats", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, stats)
}

func queryInt(ctx echo.Context, name string, fallback int) int {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
