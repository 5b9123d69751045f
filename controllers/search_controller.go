package controllers

import (
	"github.com/gin-gonic/gin"

	"filevault/middleware"
	"filevault/services"
	"filevault/utils"
)

type SearchController struct {
	fileService *services.FileService
}

func NewSearchController(fileService *services.FileService) *SearchController {
	return &SearchController{fileService: fileService}
}

func (sc *SearchController) Search(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "Authorization token required")
		return
	}

	results, err := sc.fileService.Search(c.Request.Context(), userID, c.Query("q"))
	if err != nil {
		utils.FailureResponse(c, err)
		return
	}
	utils.DataResponse(c, results)
}
