package routes

import (
	"github.com/gin-gonic/gin"

	"filevault/controllers"
	"filevault/middleware"
)

func RegisterFileRoutes(rg *gin.RouterGroup, container *ServiceContainer) {
	fileController := controllers.NewFileController(
		container.UploadService,
		container.DownloadService,
		container.FileService,
	)

	files := rg.Group("/files")
	files.Use(middleware.AuthMiddleware(container.JWTSecret))
	{
		files.POST("/upload/:folderUri", fileController.Upload)
		files.GET("/lookup", fileController.FindByHash)
		files.GET("/history", fileController.UploadHistory)
		files.DELETE("/history/:uri", fileController.RemoveFromHistory)

		files.GET("/:uri/download", fileController.Download)
		files.PATCH("/:uri/favourite", fileController.MarkFavourite)
		files.DELETE("/:uri", fileController.Delete)

		files.PATCH("/rename", fileController.Rename)
	}
}
