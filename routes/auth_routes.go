package routes

import (
	"github.com/gin-gonic/gin"

	"filevault/controllers"
	"filevault/middleware"
)

func RegisterAuthRoutes(rg *gin.RouterGroup, container *ServiceContainer) {
	authController := controllers.NewAuthController(container.AuthService)

	auth := rg.Group("/auth")
	{
		auth.POST("/signup", authController.Signup)
		auth.POST("/login", authController.Login)
		auth.GET("/me", middleware.AuthMiddleware(container.JWTSecret), authController.Me)
	}
}
