package controller

import (
	"errors"
	"schoolhub_backend/internal/service"
	"schoolhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// ExamController is the student-side test-taking surface. All state
// transitions go through the session service; the controller only translates
// HTTP in and out.
type ExamController struct {
	Sessions *service.ExamSessionService
	Stream   *service.ExamStreamService
	Tests    *service.TestService
	Classes  *service.ClassService
}

func NewExamController(sessions *service.ExamSessionService, stream *service.ExamStreamService, tests *service.TestService, classes *service.ClassService) *ExamController {
	return &ExamController{Sessions: sessions, Stream: stream, Tests: tests, Classes: classes}
}

// @Summary List published tests for the student's class
// @Tags exam
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/student/tests [get]
func (c *ExamController) ListAvailableTests(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	class, err := c.Classes.ClassOfStudent(user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	if class == nil {
		util.Success(ctx, []interface{}{})
		return
	}

	tests, err := c.Tests.ListPublishedForStudent(class.ID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, tests)
}

// @Summary Get a published test's detail
// @Tags exam
// @Produce json
// @Security BearerAuth
// @Param id path string true "Test ID"
// @Success 200 {object} util.Response
// @Router /api/student/tests/{id} [get]
func (c *ExamController) GetTest(ctx *gin.Context) {
	test, qs, err := c.Tests.GetPublishedTest(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, util.ErrTestNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrTestNotPublished):
			util.Forbidden(ctx)
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, gin.H{"test": test, "questions": qs})
}

// sessionPayload is the full session response shared by the GET, start and
// submit endpoints.
func sessionPayload(s *service.ExamSession) gin.H {
	return gin.H{
		"view":       s.Snapshot(),
		"questions":  s.Questions(),
		"answers":    s.Answers(),
		"submission": s.Submission(),
	}
}

// @Summary Get or reconstruct the exam session
// @Tags exam
// @Produce json
// @Security BearerAuth
// @Param id path string true "Test ID"
// @Success 200 {object} util.Response
// @Router /api/student/tests/{id}/session [get]
func (c *ExamController) GetSession(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	s, err := c.Sessions.LoadSession(ctx.Request.Context(), ctx.Param("id"), user.UserID)
	if err != nil {
		respondExamError(ctx, err)
		return
	}
	util.Success(ctx, sessionPayload(s))
}

// @Summary Start the test
// @Tags exam
// @Produce json
// @Security BearerAuth
// @Param id path string true "Test ID"
// @Success 201 {object} util.Response
// @Router /api/student/tests/{id}/start [post]
func (c *ExamController) StartTest(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	s, err := c.Sessions.StartTest(ctx.Request.Context(), ctx.Param("id"), user.UserID)
	if err != nil {
		respondExamError(ctx, err)
		return
	}
	util.Created(ctx, sessionPayload(s))
}

type SaveAnswerReq struct {
	QuestionID     string  `json:"questionId" binding:"required"`
	SelectedOption *int    `json:"selectedOption"`
	AnswerText     *string `json:"answerText"`
}

// @Summary Save one answer
// @Tags exam
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Test ID"
// @Param body body SaveAnswerReq true "Answer value, exactly one of selectedOption or answerText"
// @Success 200 {object} util.Response
// @Router /api/student/tests/{id}/answer [put]
func (c *ExamController) SaveAnswer(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req SaveAnswerReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	var value service.AnswerValue
	switch {
	case req.SelectedOption != nil && req.AnswerText == nil:
		value = service.ChoiceAnswer{Option: *req.SelectedOption}
	case req.AnswerText != nil && req.SelectedOption == nil:
		value = service.EssayAnswer{Text: *req.AnswerText}
	default:
		util.BadRequest(ctx, "exactly one of selectedOption or answerText is required")
		return
	}

	if err := c.Sessions.SaveAnswer(ctx.Request.Context(), ctx.Param("id"), user.UserID, req.QuestionID, value); err != nil {
		respondExamError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"saved": req.QuestionID})
}

type PositionReq struct {
	Index int `json:"index"`
}

// @Summary Move the current-question cursor
// @Tags exam
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Test ID"
// @Param body body PositionReq true "Question index"
// @Success 200 {object} util.Response
// @Router /api/student/tests/{id}/position [put]
func (c *ExamController) SetPosition(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req PositionReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	s, err := c.Sessions.LoadSession(ctx.Request.Context(), ctx.Param("id"), user.UserID)
	if err != nil {
		respondExamError(ctx, err)
		return
	}
	s.SetCurrentQuestion(req.Index)
	util.Success(ctx, s.Snapshot())
}

// @Summary Submit the test
// @Tags exam
// @Produce json
// @Security BearerAuth
// @Param id path string true "Test ID"
// @Success 200 {object} util.Response
// @Router /api/student/tests/{id}/submit [post]
func (c *ExamController) Submit(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	s, err := c.Sessions.Submit(ctx.Request.Context(), ctx.Param("id"), user.UserID)
	if err != nil {
		respondExamError(ctx, err)
		return
	}
	util.Success(ctx, sessionPayload(s))
}

// @Summary Tear down the live session without submitting
// @Tags exam
// @Produce json
// @Security BearerAuth
// @Param id path string true "Test ID"
// @Success 200 {object} util.Response
// @Router /api/student/tests/{id}/session [delete]
func (c *ExamController) Teardown(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	c.Sessions.Teardown(ctx.Param("id"), user.UserID)
	util.Success(ctx, gin.H{"released": ctx.Param("id")})
}

// @Summary Stream per-second session snapshots over a websocket
// @Tags exam
// @Security BearerAuth
// @Param id path string true "Test ID"
// @Router /api/student/tests/{id}/stream [get]
func (c *ExamController) StreamSession(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	if err := c.Stream.Serve(ctx.Writer, ctx.Request, ctx.Param("id"), user.UserID); err != nil {
		// The upgrade writes its own error response; anything before it maps
		// like the rest of the exam endpoints.
		if !ctx.Writer.Written() {
			respondExamError(ctx, err)
		}
	}
}

// @Summary List own submissions
// @Tags exam
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/student/submissions [get]
func (c *ExamController) MySubmissions(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	subs, err := c.Tests.StudentSubmissions(user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, subs)
}

func respondExamError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrTestNotFound), errors.Is(err, util.ErrQuestionNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrTestNotPublished):
		util.Forbidden(ctx)
	case errors.Is(err, util.ErrNotStartable):
		util.Conflict(ctx, "test is not startable in its current state")
	case errors.Is(err, util.ErrSubmissionClosed):
		util.Conflict(ctx, "submission already closed")
	case errors.Is(err, util.ErrAnswerMismatch):
		util.BadRequest(ctx, "answer does not match the question type")
	default:
		util.LogInternalError(ctx, err)
	}
}
