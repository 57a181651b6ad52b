package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/taskboard/taskboard/util/common"
	"github.com/taskboard/taskboard/web/entity"
	"github.com/taskboard/taskboard/web/service"
)

// TaskController serves the authenticated user's own tasks.
type TaskController struct {
	tasks *service.TaskService
}

func NewTaskController(g *gin.RouterGroup, tasks *service.TaskService) *TaskController {
	a := &TaskController{tasks: tasks}
	a.initRouter(g)
	return a
}

func (a *TaskController) initRouter(g *gin.RouterGroup) {
	g = g.Group("/tasks")
	g.GET("", a.list)
	g.POST("", a.create)
	g.GET("/:id", a.get)
	g.PUT("/:id", a.update)
	g.DELETE("/:id", a.delete)
}

func (a *TaskController) list(c *gin.Context) {
	var filter entity.TaskFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		respondErr(c, common.Fail(common.ErrValidation, "Invalid filter: "+err.Error()))
		return
	}
	tasks, err := a.tasks.ListTasks(c.Request.Context(), currentUserID(c), &filter)
	if err != nil {
		respondErr(c, err)
		return
	}
	jsonObj(c, tasks)
}

func (a *TaskController) get(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	task, err := a.tasks.GetTask(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	jsonObj(c, task)
}

func (a *TaskController) create(c *gin.Context) {
	var form entity.TaskForm
	if !bindJSON(c, &form) {
		return
	}
	task, err := a.tasks.CreateTask(c.Request.Context(), currentUserID(c), &form)
	if err != nil {
		respondErr(c, err)
		return
	}
	jsonMsgObj(c, http.StatusCreated, "Task created", task)
}

func (a *TaskController) update(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var form entity.TaskForm
	if !bindJSON(c, &form) {
		return
	}
	task, err := a.tasks.UpdateTask(c.Request.Context(), currentUserID(c), id, &form)
	if err != nil {
		respondErr(c, err)
		return
	}
	jsonObj(c, task)
}

func (a *TaskController) delete(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := a.tasks.DeleteTask(c.Request.Context(), currentUserID(c), id); err != nil {
		respondErr(c, err)
		return
	}
	jsonMsg(c, http.StatusOK, "Task deleted")
}
