package handler

import (
	"net/http"

	"stockroom/internal/middleware"
	"stockroom/internal/model"
	"stockroom/internal/service"
	"stockroom/pkg/pagination"
	"stockroom/pkg/response"

	"github.com/gin-gonic/gin"
)

type TaskHandler struct {
	taskService service.TaskService
	auth        *middleware.Auth
}

func NewTaskHandler(taskService service.TaskService, auth *middleware.Auth) *TaskHandler {
	return &TaskHandler{taskService: taskService, auth: auth}
}

func (h *TaskHandler) RegisterRoutes(router *gin.RouterGroup) {
	tasks := router.Group("/api/tasks")
	{
		tasks.GET("", h.auth.RequireRole(), h.GetTasks)
		tasks.GET("/:id", h.auth.RequireRole(), h.GetTask)
		tasks.POST("", h.auth.RequireRole(model.RoleAdmin, model.RoleSales), h.CreateTask)
		tasks.PATCH("/:id/status", h.auth.RequireRole(model.RoleAdmin, model.RoleSales, model.RoleWarehouse), h.UpdateStatus)
	}
}

// GetTasks lists shipment tasks visible to the caller
// @Summary      Get tasks
// @Description  Paginated shipment tasks; staff only see tasks they created
// @Tags         tasks
// @Security     BearerAuth
// @Produce      json
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Param        status  query     string  false  "pending, processing or completed"
// @Success      200     {object}  response.Response{data=response.Page}
// @Failure      400     {object}  response.Response
// @Router       /api/tasks [get]
func (h *TaskHandler) GetTasks(c *gin.Context) {
	p := pagination.Parse(c)

	tasks, total, err := h.taskService.ListTasks(c.Request.Context(), viewer(c), service.TaskListFilter{
		Page:   p.Page,
		Limit:  p.Limit,
		Status: c.Query("status"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Paged(http.StatusOK, tasks, total, p.Page, p.Limit))
}

// GetTask returns one task with its items
// @Summary      Get task
// @Tags         tasks
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  response.Response{data=service.TaskResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/tasks/{id} [get]
func (h *TaskHandler) GetTask(c *gin.Context) {
	task, err := h.taskService.GetTask(c.Request.Context(), viewer(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, task))
}

// CreateTask records a new shipment task for the caller
// @Summary      Create task
// @Description  Creates a pending task; product names and sale prices are snapshotted into the items
// @Tags         tasks
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateTaskRequest  true  "Create Task Payload"
// @Success      201      {object}  response.Response{data=service.TaskResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/tasks [post]
func (h *TaskHandler) CreateTask(c *gin.Context) {
	var req service.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), viewer(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, task))
}

// UpdateStatus moves a task to its next status
// @Summary      Update task status
// @Description  pending -> processing -> completed; completing decrements stock
// @Tags         tasks
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                           true  "Task ID"
// @Param        payload  body      service.UpdateTaskStatusRequest  true  "New status"
// @Success      200      {object}  response.Response{data=service.TaskResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/tasks/{id}/status [patch]
func (h *TaskHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateTaskStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	task, err := h.taskService.UpdateStatus(c.Request.Context(), viewer(c), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, task))
}
