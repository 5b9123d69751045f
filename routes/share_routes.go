package routes

import (
	"github.com/gin-gonic/gin"

	"filevault/controllers"
	"filevault/middleware"
)

func RegisterShareRoutes(rg *gin.RouterGroup, container *ServiceContainer) {
	shareController := controllers.NewShareController(
		container.ShareService,
		container.CopyMoveService,
		container.DownloadService,
		container.AuthService,
	)

	shares := rg.Group("/shares")
	shares.Use(middleware.AuthMiddleware(container.JWTSecret))
	{
		shares.POST("", shareController.Grant)
		shares.GET("", shareController.List)
		shares.DELETE("", shareController.Revoke)
	}

	// Shared-content routes accept anonymous callers so open grants work
	// without an account; the share itself decides who gets through.
	shared := rg.Group("/shared")
	shared.Use(middleware.OptionalAuthMiddleware(container.JWTSecret))
	{
		shared.GET("/:shareId", shareController.GrantedResource)
		shared.GET("/:shareId/folder/:uri", shareController.ListSharedFolder)
		shared.GET("/:shareId/file/:uri/download", shareController.DownloadShared)
		shared.POST("/:shareId/copy", shareController.CopyShared)
	}
}
