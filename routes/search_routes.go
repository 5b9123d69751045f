package routes

import (
	"github.com/gin-gonic/gin"

	"filevault/controllers"
	"filevault/middleware"
)

func RegisterSearchRoutes(rg *gin.RouterGroup, container *ServiceContainer) {
	searchController := controllers.NewSearchController(container.FileService)

	rg.GET("/search", middleware.AuthMiddleware(container.JWTSecret), searchController.Search)
}
