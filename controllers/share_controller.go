package controllers

import (
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"filevault/middleware"
	"filevault/models"
	"filevault/services"
	"filevault/utils"
)

type ShareController struct {
	shareService    *services.ShareService
	copyMoveService *services.CopyMoveService
	downloadService *services.DownloadService
	authService     *services.AuthService
}

func NewShareController(shareService *services.ShareService, copyMoveService *services.CopyMoveService, downloadService *services.DownloadService, authService *services.AuthService) *ShareController {
	return &ShareController{
		shareService:    shareService,
		copyMoveService: copyMoveService,
		downloadService: downloadService,
		authService:     authService,
	}
}

type grantRequest struct {
	Grantees  []string                 `json:"grantees"`
	Resources []services.ResourceGrant `json:"resources" binding:"required"`
}

func (sc *ShareController) Grant(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "Authorization token required")
		return
	}

	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	shares, err := sc.shareService.Grant(c.Request.Context(), userID, req.Grantees, req.Resources)
	if err != nil {
		utils.FailureResponse(c, err)
		return
	}
	utils.CreatedResponse(c, shares)
}

func (sc *ShareController) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "Authorization token required")
		return
	}

	shares, err := sc.shareService.ListGrantedBy(c.Request.Context(), userID)
	if err != nil {
		utils.FailureResponse(c, err)
		return
	}
	utils.DataResponse(c, shares)
}

type revokeRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

func (sc *ShareController) Revoke(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "Authorization token required")
		return
	}

	var req revokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	ids := make([]primitive.ObjectID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid share id")
			return
		}
		ids = append(ids, id)
	}

	if err := sc.shareService.Revoke(c.Request.Context(), userID, ids); err != nil {
		utils.FailureResponse(c, err)
		return
	}
	utils.MessageResponse(c, "Shares revoked")
}

// authorizeShare resolves the share and checks the caller may use it. For
// anonymous callers only open shares pass.
func (sc *ShareController) authorizeShare(c *gin.Context) (*models.SharedResource, *models.User) {
	shareID, err := primitive.ObjectIDFromHex(c.Param("shareId"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid share id")
		return nil, nil
	}

	var user *models.User
	if userID, ok := middleware.UserID(c); ok {
		user, err = sc.authService.GetUser(c.Request.Context(), userID)
		if err != nil {
			utils.FailureResponse(c, err)
			return nil, nil
		}
	}

	share, err := sc.shareService.Authorize(c.Request.Context(), shareID, user)
	if err != nil {
		utils.FailureResponse(c, err)
		return nil, nil
	}
	return share, user
}

// GrantedResource returns the metadata of the shared resource itself.
func (sc *ShareController) GrantedResource(c *gin.Context) {
	share, _ := sc.authorizeShare(c)
	if share == nil {
		return
	}

	resource, err := sc.shareService.GrantedResource(c.Request.Context(), share)
	if err != nil {
		utils.FailureResponse(c, err)
		return
	}
	utils.DataResponse(c, gin.H{"share": share, "resource": resource})
}

// ListSharedFolder lists one level of a shared folder subtree.
func (sc *ShareController) ListSharedFolder(c *gin.Context) {
	share, _ := sc.authorizeShare(c)
	if share == nil {
		return
	}

	listing, err := sc.shareService.ListSharedChildren(c.Request.Context(), share, c.Param("uri"))
	if err != nil {
		utils.FailureResponse(c, err)
		return
	}
	utils.DataResponse(c, listing)
}

// DownloadShared streams a file reached through a share, decrypted under the
// grantor's key.
func (sc *ShareController) DownloadShared(c *gin.Context) {
	share, _ := sc.authorizeShare(c)
	if share == nil {
		return
	}

	fileURI := c.Param("uri")
	if err := sc.shareService.ResolveAccess(c.Request.Context(), share, fileURI, models.ResourceTypeFile); err != nil {
		utils.FailureResponse(c, err)
		return
	}

	grantor, err := sc.authService.GetUser(c.Request.Context(), share.GrantorID)
	if err != nil {
		utils.FailureResponse(c, err)
		return
	}

	file, reader, err := sc.downloadService.StreamOwnedBy(c.Request.Context(), grantor, fileURI)
	if err != nil {
		utils.FailureResponse(c, err)
		return
	}
	defer reader.Close()

	serveFileStream(c, file, reader, c.Query("inline") == "true")
}

// CopyShared duplicates shared content into the caller's own tree, with the
// bytes re-encrypted under the caller's key.
func (sc *ShareController) CopyShared(c *gin.Context) {
	if _, ok := middleware.UserID(c); !ok {
		utils.UnauthorizedResponse(c, "Authorization token required")
		return
	}

	share, user := sc.authorizeShare(c)
	if share == nil {
		return
	}

	var req relocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	if err := sc.copyMoveService.CopyShared(c.Request.Context(), user, share, req.URIs, req.DestinationFolderURI); err != nil {
		utils.FailureResponse(c, err)
		return
	}
	utils.MessageResponse(c, "Content copied")
}
