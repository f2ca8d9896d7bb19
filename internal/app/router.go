package app

import (
	"schoolhub_backend/docs"
	"schoolhub_backend/internal/config"
	"schoolhub_backend/internal/middleware"
	"schoolhub_backend/internal/model"
	"schoolhub_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	a.registerPublicRoutes(router, c)

	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		a.registerCommonRoutes(authGroup, c)
		a.registerStudentRoutes(authGroup, c)
		a.registerTeacherRoutes(authGroup, c)
		a.registerParentRoutes(authGroup, c)
		a.registerAdminRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/auth/register", c.auth.Register)
		public.POST("/auth/login", c.auth.Login)
	}
}

func (a *App) registerCommonRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/auth/me", c.auth.Me)
	rg.GET("/users/profile", c.user.GetProfile)
	rg.PUT("/users/profile", c.user.UpdateProfile)
	rg.POST("/users/avatar", c.user.UploadAvatar)
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	student := rg.Group("/student")
	student.Use(middleware.RoleMiddleware(model.Student))
	{
		student.GET("/tests", c.exam.ListAvailableTests)
		student.GET("/tests/:id", c.exam.GetTest)

		// Exam session lifecycle.
		student.GET("/tests/:id/session", c.exam.GetSession)
		student.POST("/tests/:id/start", c.exam.StartTest)
		student.PUT("/tests/:id/answer", c.exam.SaveAnswer)
		student.PUT("/tests/:id/position", c.exam.SetPosition)
		student.POST("/tests/:id/submit", c.exam.Submit)
		student.DELETE("/tests/:id/session", c.exam.Teardown)
		student.GET("/tests/:id/stream", c.exam.StreamSession)

		student.GET("/submissions", c.exam.MySubmissions)

		student.POST("/attendance/check-in", c.attendance.CheckIn)
		student.POST("/attendance/check-out", c.attendance.CheckOut)
		student.GET("/attendance", c.attendance.MyHistory)
	}
}

func (a *App) registerTeacherRoutes(rg *gin.RouterGroup, c *controllers) {
	teacher := rg.Group("/teacher")
	teacher.Use(middleware.RoleMiddleware(model.Teacher))
	{
		teacher.POST("/tests", c.test.CreateTest)
		teacher.GET("/tests", c.test.ListTests)
		teacher.GET("/tests/:id", c.test.GetTest)
		teacher.PUT("/tests/:id", c.test.UpdateTest)
		teacher.PUT("/tests/:id/publish", c.test.SetPublished)
		teacher.DELETE("/tests/:id", c.test.DeleteTest)
		teacher.GET("/tests/:id/submissions", c.test.ListSubmissions)
		teacher.GET("/submissions/:id", c.test.GetSubmissionDetail)
		teacher.POST("/submissions/:id/grade", c.test.GradeSubmission)

		teacher.GET("/classes", c.class.ListMine)
		teacher.GET("/classes/:id", c.class.Get)
		teacher.GET("/classes/:id/attendance", c.attendance.ClassDay)
	}
}

func (a *App) registerParentRoutes(rg *gin.RouterGroup, c *controllers) {
	parent := rg.Group("/parent")
	parent.Use(middleware.RoleMiddleware(model.Parent))
	{
		parent.GET("/children", c.user.Children)
		parent.GET("/children/:id/attendance", c.attendance.ChildHistory)
	}
}

func (a *App) registerAdminRoutes(rg *gin.RouterGroup, c *controllers) {
	admin := rg.Group("/admin")
	admin.Use(middleware.RoleMiddleware(model.Admin))
	{
		admin.GET("/users", c.user.ListUsers)
		admin.POST("/parent-links", c.user.LinkParent)

		admin.POST("/classes", c.class.Create)
		admin.POST("/classes/:id/members", c.class.AddStudent)
		admin.DELETE("/classes/:id/members/:studentId", c.class.RemoveStudent)
		admin.POST("/locations", c.class.CreateLocation)
	}
}
