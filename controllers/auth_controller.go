package controllers

import (
	"github.com/gin-gonic/gin"

	"filevault/middleware"
	"filevault/services"
	"filevault/utils"
)

type AuthController struct {
	authService *services.AuthService
}

func NewAuthController(authService *services.AuthService) *AuthController {
	return &AuthController{authService: authService}
}

type signupRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (ac *AuthController) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	user, err := ac.authService.Signup(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		utils.FailureResponse(c, err)
		return
	}
	utils.CreatedResponse(c, user)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (ac *AuthController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	user, token, err := ac.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		utils.FailureResponse(c, err)
		return
	}
	utils.DataResponse(c, gin.H{"user": user, "token": token})
}

func (ac *AuthController) Me(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "Authorization token required")
		return
	}

	user, err := ac.authService.GetUser(c.Request.Context(), userID)
	if err != nil {
		utils.FailureResponse(c, err)
		return
	}
	utils.DataResponse(c, user)
}
