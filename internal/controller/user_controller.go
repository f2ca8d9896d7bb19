package controller

import (
	"fmt"
	"path/filepath"
	"schoolhub_backend/internal/model"
	"schoolhub_backend/internal/service"
	"schoolhub_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type UserController struct {
	Service *service.UserService
	Storage *service.StorageService
}

func NewUserController(svc *service.UserService, storage *service.StorageService) *UserController {
	return &UserController{Service: svc, Storage: storage}
}

// @Summary Get own profile
// @Tags user
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/users/profile [get]
func (c *UserController) GetProfile(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	profile, err := c.Service.GetProfile(user.UserID)
	if err != nil {
		util.NotFound(ctx)
		return
	}
	profile.Password = ""
	util.Success(ctx, profile)
}

type UpdateProfileReq struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// @Summary Update own profile
// @Tags user
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body UpdateProfileReq true "Fields to update"
// @Success 200 {object} util.Response
// @Router /api/users/profile [put]
func (c *UserController) UpdateProfile(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req UpdateProfileReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	profile, err := c.Service.UpdateProfile(user.UserID, req.Name, req.Avatar)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	profile.Password = ""
	util.Success(ctx, profile)
}

// @Summary Upload an avatar image
// @Tags user
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Image file"
// @Success 200 {object} util.Response
// @Router /api/users/avatar [post]
func (c *UserController) UploadAvatar(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer file.Close()

	filename := fmt.Sprintf("avatars/%d/%s%s", user.UserID, uuid.New().String(), filepath.Ext(fileHeader.Filename))
	url, err := c.Storage.Upload(ctx.Request.Context(), filename, file, fileHeader.Size, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	if _, err := c.Service.UpdateProfile(user.UserID, "", url); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"url": url})
}

// @Summary List users by role
// @Tags user
// @Produce json
// @Security BearerAuth
// @Param role query string false "Role filter"
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} util.Response
// @Router /api/admin/users [get]
func (c *UserController) ListUsers(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	role := model.UserRole(ctx.Query("role"))

	users, total, err := c.Service.ListByRole(role, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	for i := range users {
		users[i].Password = ""
	}

	util.Success(ctx, util.PageResponse{List: users, Total: total, Page: page, Limit: limit})
}

type LinkParentReq struct {
	ParentID  uint `json:"parentId" binding:"required"`
	StudentID uint `json:"studentId" binding:"required"`
}

// @Summary Link a parent account to a student
// @Tags user
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body LinkParentReq true "Parent and student IDs"
// @Success 201 {object} util.Response
// @Router /api/admin/parent-links [post]
func (c *UserController) LinkParent(ctx *gin.Context) {
	var req LinkParentReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.Service.LinkParent(req.ParentID, req.StudentID); err != nil {
		switch err {
		case util.ErrUserNotFound:
			util.NotFound(ctx)
		case util.ErrPermissionDenied:
			util.BadRequest(ctx, "role mismatch for parent link")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Created(ctx, gin.H{"parentId": req.ParentID, "studentId": req.StudentID})
}

// @Summary List the caller's linked children
// @Tags user
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/parent/children [get]
func (c *UserController) Children(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	children, err := c.Service.Children(user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	for i := range children {
		children[i].Password = ""
	}
	util.Success(ctx, children)
}
