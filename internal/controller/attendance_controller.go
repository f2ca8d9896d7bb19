package controller

import (
	"errors"
	"schoolhub_backend/internal/service"
	"schoolhub_backend/internal/util"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

type AttendanceController struct {
	Service *service.AttendanceService
}

func NewAttendanceController(svc *service.AttendanceService) *AttendanceController {
	return &AttendanceController{Service: svc}
}

type CheckInReq struct {
	Latitude  float64 `json:"latitude" binding:"required"`
	Longitude float64 `json:"longitude" binding:"required"`
}

// @Summary Check in at the class location
// @Tags attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CheckInReq true "Device coordinates"
// @Success 201 {object} util.Response
// @Router /api/student/attendance/check-in [post]
func (c *AttendanceController) CheckIn(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req CheckInReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	record, err := c.Service.CheckIn(user.UserID, req.Latitude, req.Longitude)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrOutsideGeofence):
			util.Error(ctx, 422, "outside the class geofence")
		case errors.Is(err, util.ErrAlreadyCheckedIn):
			util.Conflict(ctx, "already checked in today")
		case errors.Is(err, util.ErrPermissionDenied):
			util.Forbidden(ctx)
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Created(ctx, record)
}

// @Summary Check out
// @Tags attendance
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/student/attendance/check-out [post]
func (c *AttendanceController) CheckOut(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	record, err := c.Service.CheckOut(user.UserID)
	if err != nil {
		if errors.Is(err, util.ErrNotCheckedIn) {
			util.Conflict(ctx, "no open check-in today")
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, record)
}

// @Summary Own attendance history
// @Tags attendance
// @Produce json
// @Security BearerAuth
// @Param days query int false "Days back" default(30)
// @Success 200 {object} util.Response
// @Router /api/student/attendance [get]
func (c *AttendanceController) MyHistory(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	days, _ := strconv.Atoi(ctx.DefaultQuery("days", "30"))
	records, err := c.Service.StudentHistory(user.UserID, days)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, records)
}

// @Summary Roll-call view for one class and day
// @Tags attendance
// @Produce json
// @Security BearerAuth
// @Param id path int true "Class ID"
// @Param date query string false "Day (YYYY-MM-DD), defaults to today"
// @Success 200 {object} util.Response
// @Router /api/teacher/classes/{id}/attendance [get]
func (c *AttendanceController) ClassDay(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	classID, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid class id")
		return
	}

	date := time.Now()
	if raw := ctx.Query("date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			util.BadRequest(ctx, "invalid date, expected YYYY-MM-DD")
			return
		}
		date = parsed
	}

	rows, err := c.Service.ClassDay(user.UserID, uint(classID), date)
	if err != nil {
		if errors.Is(err, util.ErrPermissionDenied) {
			util.Forbidden(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, rows)
}

// @Summary A linked child's attendance history
// @Tags attendance
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Param days query int false "Days back" default(30)
// @Success 200 {object} util.Response
// @Router /api/parent/children/{id}/attendance [get]
func (c *AttendanceController) ChildHistory(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	studentID, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid student id")
		return
	}

	days, _ := strconv.Atoi(ctx.DefaultQuery("days", "30"))
	records, err := c.Service.ChildHistory(user.UserID, uint(studentID), days)
	if err != nil {
		if errors.Is(err, util.ErrPermissionDenied) {
			util.Forbidden(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, records)
}
