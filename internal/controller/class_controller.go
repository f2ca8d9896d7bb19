package controller

import (
	"errors"
	"schoolhub_backend/internal/service"
	"schoolhub_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type ClassController struct {
	Service *service.ClassService
}

func NewClassController(svc *service.ClassService) *ClassController {
	return &ClassController{Service: svc}
}

// @Summary Create a class
// @Tags classes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.ClassReq true "Class info"
// @Success 201 {object} util.Response
// @Router /api/admin/classes [post]
func (c *ClassController) Create(ctx *gin.Context) {
	var req service.ClassReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	class, err := c.Service.Create(req)
	if err != nil {
		respondClassError(ctx, err)
		return
	}
	util.Created(ctx, class)
}

// @Summary Get a class with its roster
// @Tags classes
// @Produce json
// @Security BearerAuth
// @Param id path int true "Class ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/classes/{id} [get]
func (c *ClassController) Get(ctx *gin.Context) {
	classID, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid class id")
		return
	}

	class, members, err := c.Service.Get(uint(classID))
	if err != nil {
		util.NotFound(ctx)
		return
	}
	for i := range members {
		members[i].Password = ""
	}
	util.Success(ctx, gin.H{"class": class, "members": members})
}

// @Summary List own classes
// @Tags classes
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/teacher/classes [get]
func (c *ClassController) ListMine(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	classes, err := c.Service.ListByTeacher(user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, classes)
}

type RosterReq struct {
	StudentID uint `json:"studentId" binding:"required"`
}

// @Summary Add a student to a class
// @Tags classes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Class ID"
// @Param body body RosterReq true "Student ID"
// @Success 201 {object} util.Response
// @Router /api/admin/classes/{id}/members [post]
func (c *ClassController) AddStudent(ctx *gin.Context) {
	classID, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid class id")
		return
	}

	var req RosterReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.Service.AddStudent(uint(classID), req.StudentID); err != nil {
		respondClassError(ctx, err)
		return
	}
	util.Created(ctx, gin.H{"classId": classID, "studentId": req.StudentID})
}

// @Summary Remove a student from a class
// @Tags classes
// @Produce json
// @Security BearerAuth
// @Param id path int true "Class ID"
// @Param studentId path int true "Student ID"
// @Success 200 {object} util.Response
// @Router /api/admin/classes/{id}/members/{studentId} [delete]
func (c *ClassController) RemoveStudent(ctx *gin.Context) {
	classID, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid class id")
		return
	}
	studentID, err := strconv.ParseUint(ctx.Param("studentId"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid student id")
		return
	}

	if err := c.Service.RemoveStudent(uint(classID), uint(studentID)); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"removed": studentID})
}

// @Summary Create a geofenced location
// @Tags classes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.LocationReq true "Location info"
// @Success 201 {object} util.Response
// @Router /api/admin/locations [post]
func (c *ClassController) CreateLocation(ctx *gin.Context) {
	var req service.LocationReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	loc, err := c.Service.CreateLocation(req)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Created(ctx, loc)
}

func respondClassError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrUserNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrPermissionDenied):
		util.BadRequest(ctx, "role mismatch")
	default:
		util.LogInternalError(ctx, err)
	}
}
