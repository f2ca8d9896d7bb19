package controller

import (
	"errors"
	"schoolhub_backend/internal/service"
	"schoolhub_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

// TestController is the teacher-side authoring and grading surface.
type TestController struct {
	Service *service.TestService
}

func NewTestController(svc *service.TestService) *TestController {
	return &TestController{Service: svc}
}

// @Summary Create a test
// @Tags tests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.TestReq true "Test definition"
// @Success 201 {object} util.Response
// @Router /api/teacher/tests [post]
func (c *TestController) CreateTest(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.TestReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	test, err := c.Service.CreateTest(user.UserID, req)
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	util.Created(ctx, test)
}

// @Summary List own tests
// @Tags tests
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} util.Response
// @Router /api/teacher/tests [get]
func (c *TestController) ListTests(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	rows, total, err := c.Service.ListTests(user.UserID, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: rows, Total: total, Page: page, Limit: limit})
}

// @Summary Get a test with its questions
// @Tags tests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Test ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/tests/{id} [get]
func (c *TestController) GetTest(ctx *gin.Context) {
	test, qs, err := c.Service.GetTest(ctx.Param("id"))
	if err != nil {
		util.NotFound(ctx)
		return
	}
	util.Success(ctx, gin.H{"test": test, "questions": qs})
}

// @Summary Update a test
// @Tags tests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Test ID"
// @Param body body service.TestReq true "Fields to update"
// @Success 200 {object} util.Response
// @Router /api/teacher/tests/{id} [put]
func (c *TestController) UpdateTest(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.TestReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	test, err := c.Service.UpdateTest(user.UserID, ctx.Param("id"), req)
	if err != nil {
		respondTestError(ctx, err)
		return
	}
	util.Success(ctx, test)
}

type PublishReq struct {
	Published bool `json:"published"`
}

// @Summary Publish or unpublish a test
// @Tags tests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Test ID"
// @Param body body PublishReq true "Publish flag"
// @Success 200 {object} util.Response
// @Router /api/teacher/tests/{id}/publish [put]
func (c *TestController) SetPublished(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req PublishReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.Service.SetPublished(user.UserID, ctx.Param("id"), req.Published); err != nil {
		respondTestError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"published": req.Published})
}

// @Summary Delete a test
// @Tags tests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Test ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/tests/{id} [delete]
func (c *TestController) DeleteTest(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	if err := c.Service.DeleteTest(user.UserID, ctx.Param("id")); err != nil {
		respondTestError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"deleted": ctx.Param("id")})
}

// @Summary List submissions for a test
// @Tags tests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Test ID"
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(20)
// @Param name query string false "Student name filter"
// @Success 200 {object} util.Response
// @Router /api/teacher/tests/{id}/submissions [get]
func (c *TestController) ListSubmissions(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	rows, total, err := c.Service.ListSubmissions(ctx.Param("id"), page, limit, ctx.Query("name"))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: rows, Total: total, Page: page, Limit: limit})
}

// @Summary Get a submission with answers
// @Tags tests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Submission ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/submissions/{id} [get]
func (c *TestController) GetSubmissionDetail(ctx *gin.Context) {
	detail, err := c.Service.SubmissionDetail(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		util.NotFound(ctx)
		return
	}
	util.Success(ctx, detail)
}

// @Summary Grade a submission
// @Tags tests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Submission ID"
// @Param body body service.GradeReq true "Per-question scores"
// @Success 200 {object} util.Response
// @Router /api/teacher/submissions/{id}/grade [post]
func (c *TestController) GradeSubmission(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.GradeReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.Service.GradeSubmission(ctx.Request.Context(), user.UserID, ctx.Param("id"), req); err != nil {
		switch {
		case errors.Is(err, util.ErrNotGradable):
			util.Conflict(ctx, "submission is still in progress")
		case errors.Is(err, util.ErrPermissionDenied):
			util.Forbidden(ctx)
		case errors.Is(err, util.ErrTestNotFound):
			util.NotFound(ctx)
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, gin.H{"graded": ctx.Param("id")})
}

func respondTestError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrTestNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx)
	default:
		util.BadRequest(ctx, err.Error())
	}
}
