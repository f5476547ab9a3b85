package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// TodoHandler serves the /api/todos endpoints.
type TodoHandler struct {
	store     Store
	telemetry Telemetry
}

func NewTodoHandler(store Store, telemetry Telemetry) *TodoHandler {
	if telemetry == nil {
		telemetry = NopTelemetry{}
	}
	return &TodoHandler{store: store, telemetry: telemetry}
}

// register mounts the handlers on rg.
func (h *TodoHandler) register(rg gin.IRoutes) {
	rg.GET("/todos", h.handleListToDos)
	rg.GET("/todos/:id", h.handleGetToDo)
	rg.POST("/todos", h.handleCreateToDo)
	rg.PUT("/todos/:id", h.handleUpdateToDo)
	rg.PATCH("/todos/:id", h.handleSetComplete)
	rg.DELETE("/todos/:id", h.handleDeleteToDo)
}

// flagEnabled is false only when some value of key is exactly "false".
func flagEnabled(c *gin.Context, key string) bool {
	for _, v := range c.QueryArray(key) {
		if v == "false" {
			return false
		}
	}
	return true
}

func filterFromQuery(c *gin.Context) Filter {
	return Filter{
		IncludeCompleted: flagEnabled(c, "includecompleted"),
		IncludeActive:    flagEnabled(c, "includeactive"),
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation), errors.Is(err, ErrSerialization):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *TodoHandler) fail(c *gin.Context, op string, err error) {
	status := statusFor(err)
	entry := log.WithError(err).WithField("operation", op)
	if status >= http.StatusInternalServerError {
		entry.Error("todo operation failed")
	} else {
		entry.Debug("todo request rejected")
	}
	h.telemetry.TrackException(c.Request.Context(), err)
	c.JSON(status, errorResponse{Msg: err.Error()})
}

func (h *TodoHandler) track(c *gin.Context, op, id string, start time.Time) {
	metrics := map[string]float64{
		"processingTime": float64(time.Since(start).Microseconds()) / 1000,
	}
	var props map[string]string
	if id != "" {
		props = map[string]string{"todo-id": id}
	}
	h.telemetry.TrackEvent(c.Request.Context(), op, props, metrics)
}

func bindBody(c *gin.Context, dst interface{}) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return nil
}

// ListToDos godoc
// @Summary List todos
// @Description Returns all todos, optionally dropping completed or active ones. Order is unspecified.
// @Tags todos
// @Produce json
// @Param includecompleted query string false "\"false\" excludes completed todos"
// @Param includeactive query string false "\"false\" excludes active todos"
// @Success 200 {array} ToDo
// @Failure 500 {object} errorResponse
// @Router /todos [get]
func (h *TodoHandler) handleListToDos(c *gin.Context) {
	const op = "get-all-todos"
	start := time.Now()
	todos, err := h.store.List(c.Request.Context(), filterFromQuery(c))
	if err != nil {
		h.fail(c, op, err)
		return
	}
	h.track(c, op, "", start)
	c.JSON(http.StatusOK, todos)
}

// GetToDo godoc
// @Summary Get a todo
// @Tags todos
// @Produce json
// @Param id path string true "Todo ID"
// @Success 200 {object} ToDo
// @Failure 404 {object} errorResponse
// @Failure 500 {object} errorResponse
// @Router /todos/{id} [get]
func (h *TodoHandler) handleGetToDo(c *gin.Context) {
	const op = "get-todo"
	start := time.Now()
	id := c.Param("id")
	todo, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, op, err)
		return
	}
	h.track(c, op, id, start)
	c.JSON(http.StatusOK, todo)
}

// CreateToDo godoc
// @Summary Create a todo
// @Description Saves the todo, generating an id when none is given.
// @Tags todos
// @Accept json
// @Produce json
// @Param todo body ToDo true "Todo to create"
// @Success 201 {object} ToDo
// @Failure 400 {object} errorResponse
// @Failure 500 {object} errorResponse
// @Router /todos [post]
func (h *TodoHandler) handleCreateToDo(c *gin.Context) {
	const op = "create-todo"
	start := time.Now()
	var todo ToDo
	if err := bindBody(c, &todo); err != nil {
		h.fail(c, op, err)
		return
	}
	if err := validateTitle(todo.Title); err != nil {
		h.fail(c, op, err)
		return
	}
	if todo.ID == "" {
		todo.ID = newID()
	} else if err := validateID(todo.ID); err != nil {
		h.fail(c, op, err)
		return
	}
	if err := h.store.Upsert(c.Request.Context(), todo); err != nil {
		h.fail(c, op, err)
		return
	}
	h.track(c, op, todo.ID, start)
	c.JSON(http.StatusCreated, todo)
}

// UpdateToDo godoc
// @Summary Update a todo title
// @Description Replaces the title. The completion flag is kept from the stored todo.
// @Tags todos
// @Accept json
// @Produce json
// @Param id path string true "Todo ID"
// @Param todo body ToDo true "New title"
// @Success 200 {object} ToDo
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Failure 500 {object} errorResponse
// @Router /todos/{id} [put]
func (h *TodoHandler) handleUpdateToDo(c *gin.Context) {
	const op = "update-todo"
	start := time.Now()
	id := c.Param("id")
	var todo ToDo
	if err := bindBody(c, &todo); err != nil {
		h.fail(c, op, err)
		return
	}
	if err := validateTitle(todo.Title); err != nil {
		h.fail(c, op, err)
		return
	}

	ctx := c.Request.Context()
	old, err := h.store.Get(ctx, id)
	if err != nil {
		h.fail(c, op, err)
		return
	}
	todo.ID = id
	todo.IsComplete = old.IsComplete

	if err := h.store.Upsert(ctx, todo); err != nil {
		h.fail(c, op, err)
		return
	}
	h.track(c, op, id, start)
	c.JSON(http.StatusOK, todo)
}

// SetComplete godoc
// @Summary Set todo completion
// @Description Changes only the completion flag. The title is kept from the stored todo.
// @Tags todos
// @Accept json
// @Produce json
// @Param id path string true "Todo ID"
// @Param patch body completionPatch true "Completion flag"
// @Success 200 {object} ToDo
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Failure 500 {object} errorResponse
// @Router /todos/{id} [patch]
func (h *TodoHandler) handleSetComplete(c *gin.Context) {
	const op = "complete-todo"
	start := time.Now()
	id := c.Param("id")
	var patch completionPatch
	if err := bindBody(c, &patch); err != nil {
		h.fail(c, op, err)
		return
	}
	if patch.IsComplete == nil {
		h.fail(c, op, fmt.Errorf("%w: isComplete is required", ErrValidation))
		return
	}

	ctx := c.Request.Context()
	todo, err := h.store.Get(ctx, id)
	if err != nil {
		h.fail(c, op, err)
		return
	}
	todo.IsComplete = *patch.IsComplete

	if err := h.store.Upsert(ctx, *todo); err != nil {
		h.fail(c, op, err)
		return
	}
	h.track(c, op, id, start)
	c.JSON(http.StatusOK, todo)
}

// DeleteToDo godoc
// @Summary Delete a todo
// @Description Deleting an unknown id succeeds.
// @Tags todos
// @Param id path string true "Todo ID"
// @Success 200
// @Failure 500 {object} errorResponse
// @Router /todos/{id} [delete]
func (h *TodoHandler) handleDeleteToDo(c *gin.Context) {
	const op = "delete-todo"
	start := time.Now()
	id := c.Param("id")
	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, op, err)
		return
	}
	h.track(c, op, id, start)
	c.Status(http.StatusOK)
}

type errorResponse struct {
	Msg string `json:"msg"`
}
