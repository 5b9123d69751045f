package controllers

import (
	"github.com/gin-gonic/gin"

	"filevault/middleware"
	"filevault/services"
	"filevault/utils"
)

type FolderController struct {
	contentService  *services.ContentService
	fileService     *services.FileService
	copyMoveService *services.CopyMoveService
}

func NewFolderController(contentService *services.ContentService, fileService *services.FileService, copyMoveService *services.CopyMoveService) *FolderController {
	return &FolderController{
		contentService:  contentService,
		fileService:     fileService,
		copyMoveService: copyMoveService,
	}
}

type createFolderRequest struct {
	Name            string `json:"name" binding:"required"`
	ParentFolderURI string `json:"parentFolderUri" binding:"required"`
}

func (fc *FolderController) Create(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "Authorization token required")
		return
	}

	var req createFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	folder, err := fc.fileService.CreateFolder(c.Request.Context(), userID, req.Name, req.ParentFolderURI)
	if err != nil {
		utils.FailureResponse(c, err)
		return
	}
	utils.CreatedResponse(c, folder)
}

// ListChildren returns one page of a folder's content. Pagination parameters
// name the sort key, direction, and the last entry of the previous page.
func (fc *FolderController) ListChildren(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "Authorization token required")
		return
	}

	listing, err := fc.contentService.ListChildren(c.Request.Context(), userID, c.Param("uri"), services.ListChildrenQuery{
		SortKey:  c.DefaultQuery("sortKey", "name"),
		Order:    c.DefaultQuery("order", "asc"),
		Start:    c.Query("start"),
		StartURI: c.Query("startUri"),
	})
	if err != nil {
		utils.FailureResponse(c, err)
		return
	}
	utils.DataResponse(c, listing)
}

func (fc *FolderController) Delete(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "Authorization token required")
		return
	}

	if err := fc.fileService.DeleteFolder(c.Request.Context(), userID, c.Param("uri")); err != nil {
		utils.FailureResponse(c, err)
		return
	}
	utils.MessageResponse(c, "Folder deleted")
}

type relocateRequest struct {
	URIs                 []string `json:"uris" binding:"required"`
	DestinationFolderURI string   `json:"destinationFolderUri" binding:"required"`
}

func (fc *FolderController) Move(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "Authorization token required")
		return
	}

	var req relocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	if err := fc.copyMoveService.Move(c.Request.Context(), userID, req.URIs, req.DestinationFolderURI); err != nil {
		utils.FailureResponse(c, err)
		return
	}
	utils.MessageResponse(c, "Content moved")
}

func (fc *FolderController) Copy(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "Authorization token required")
		return
	}

	var req relocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	if err := fc.copyMoveService.Copy(c.Request.Context(), userID, req.URIs, req.DestinationFolderURI); err != nil {
		utils.FailureResponse(c, err)
		return
	}
	utils.MessageResponse(c, "Content copied")
}
