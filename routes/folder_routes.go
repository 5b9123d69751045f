package routes

import (
	"github.com/gin-gonic/gin"

	"filevault/controllers"
	"filevault/middleware"
)

func RegisterFolderRoutes(rg *gin.RouterGroup, container *ServiceContainer) {
	folderController := controllers.NewFolderController(
		container.ContentService,
		container.FileService,
		container.CopyMoveService,
	)

	folders := rg.Group("/folders")
	folders.Use(middleware.AuthMiddleware(container.JWTSecret))
	{
		folders.POST("", folderController.Create)
		folders.GET("/:uri/content", folderController.ListChildren)
		folders.DELETE("/:uri", folderController.Delete)
	}

	content := rg.Group("/content")
	content.Use(middleware.AuthMiddleware(container.JWTSecret))
	{
		content.POST("/move", folderController.Move)
		content.POST("/copy", folderController.Copy)
	}
}
