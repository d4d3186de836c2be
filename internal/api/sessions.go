package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mirelo/sdsort/internal/filter"
)

func (c *Controller) initSessionRoutes() {
	c.Group.POST("/sessions", c.StartSession)
	c.Group.GET("/sessions/:id", c.GetSession)
	c.Group.POST("/sessions/:id/action", c.SessionAction)
	c.Group.DELETE("/sessions/:id", c.DeleteSession)
}

type sessionRequest struct {
	Filter  filter.Request    `json:"filter"`
	Folders map[string]string `json:"folders"`
}

// StartSession creates a sort session over a filter result.
func (c *Controller) StartSession(ctx echo.Context) error {
	var req sessionRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid session request", http.StatusBadRequest)
	}

	session, err := c.sessions.Start(ctx.Request().Context(), req.Filter, req.Folders)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to start session", http.StatusBadRequest)
	}

	state, err := c.sessions.StateOf(session.ID)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to read session state", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusCreated, state)
}

// GetSession returns the current state of a session.
func (c *Controller) GetSession(ctx echo.Context) error {
	state, err := c.sessions.StateOf(ctx.Param("id"))
	if err != nil {
		return c.HandleError(ctx, err, "Session not found", http.StatusNotFound)
	}
	return ctx.JSON(http.StatusOK, state)
}

type sessionActionRequest struct {
	Action    string `json:"action"`
	FolderKey string `json:"folder_key"`
}

// SessionAction applies a move, skip or undo to the session.
func (c *Controller) SessionAction(ctx echo.Context) error {
	var req sessionActionRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid session action", http.StatusBadRequest)
	}

	state, err := c.sessions.Do(ctx.Request().Context(), ctx.Param("id"), req.Action, req.FolderKey)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to apply session action", http.StatusBadRequest)
	}
	return ctx.JSON(http.StatusOK, state)
}

// DeleteSession discards a session. Applied moves stay applied.
func (c *Controller) DeleteSession(ctx echo.Context) error {
	id := ctx.Param("id")
	if !c.sessions.Delete(id) {
		return c.HandleError(ctx, fmt.Errorf("session '%s' not found", id),
			"Session not found", http.StatusNotFound)
	}
	return ctx.NoContent(http.StatusNoContent)
}
