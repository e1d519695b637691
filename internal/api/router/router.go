package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MR-GREEN1337/Thoth-sub001/config"
	"github.com/MR-GREEN1337/Thoth-sub001/internal/api/handler"
	"github.com/MR-GREEN1337/Thoth-sub001/internal/api/middleware"
	"github.com/MR-GREEN1337/Thoth-sub001/pkg/jwt"
	"github.com/MR-GREEN1337/Thoth-sub001/pkg/redis"
)

// maxBodyBytes 全局请求体上限（课程模块内容可较大，放宽到 2MB）
const maxBodyBytes = 2 << 20

// forkRateLimit Fork 接口每用户每分钟的最大请求数
const forkRateLimit = 10

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.BodyLimit(maxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.RefreshToken)
		}

		// 公开只读：已发布课程列表与详情、血缘查询
		v1.GET("/courses", h.Course.ListCourses)
		v1.GET("/courses/:id", h.Course.GetCourse)
		v1.GET("/courses/:id/lineage", h.Lineage.GetLineage)
		v1.GET("/courses/:id/root", h.Lineage.GetLineageRoot)

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, rdb, logger))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/users/me", h.Auth.GetCurrentUser)

			// 课程模块
			courses := authorized.Group("/courses")
			{
				courses.POST("", h.Course.CreateCourse)
				courses.GET("/mine", h.Course.ListMyCourses)
				courses.PUT("/:id", h.Course.UpdateCourse)
				courses.POST("/:id/publish", h.Course.PublishCourse)
				courses.POST("/:id/archive", h.Course.ArchiveCourse)
				courses.DELETE("/:id", h.Course.DeleteCourse)

				// Fork：写操作按用户限流
				courses.POST("/:id/fork",
					middleware.RateLimit(rdb, forkRateLimit, time.Minute),
					h.Lineage.ForkCourse,
				)

				// 导出模块（管理员报表面）
				exports := courses.Group("", middleware.RoleAuth("admin"))
				{
					exports.GET("/:id/export/study-plan", h.Export.ExportStudyPlan)
					exports.GET("/:id/export/lineage", h.Export.ExportLineageReport)
				}
			}
		}
	}

	return r
}
