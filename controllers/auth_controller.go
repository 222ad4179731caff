package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/legalpay/legalpay/config"
	"github.com/legalpay/legalpay/models"
	"github.com/legalpay/legalpay/utils"
	"gorm.io/gorm"
)

// RegisterMerchant creates a merchant directory record
func RegisterMerchant(c *gin.Context) {
	utils.LogInfo("RegisterMerchant called")

	var req struct {
		BusinessName string `json:"business_name" binding:"required"`
		Email        string `json:"email" binding:"required,email"`
		Phone        string `json:"phone" binding:"required"`
		Password     string `json:"password" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError("Invalid merchant registration request: %v", err)
		utils.BadRequest(c, "Invalid request", err.Error())
		return
	}

	var existing models.Merchant
	if err := config.DB.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		utils.LogError("Merchant email already registered: %s", req.Email)
		utils.Conflict(c, "Email already registered", nil)
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.LogError("Failed to hash password: %v", err)
		utils.InternalServerError(c, "Failed to process registration", nil)
		return
	}

	merchant := models.Merchant{
		BusinessName: req.BusinessName,
		Email:        req.Email,
		Phone:        req.Phone,
		Password:     hash,
	}
	if err := config.DB.Create(&merchant).Error; err != nil {
		utils.LogError("Failed to create merchant: %v", err)
		utils.InternalServerError(c, "Failed to create account", err.Error())
		return
	}
	utils.LogInfo("Merchant registered: %s", merchant.ID)

	utils.Created(c, "Merchant registered successfully", gin.H{
		"id":            merchant.ID,
		"business_name": merchant.BusinessName,
		"email":         merchant.Email,
	})
}

// RegisterPayer creates a payer directory record
func RegisterPayer(c *gin.Context) {
	utils.LogInfo("RegisterPayer called")

	var req struct {
		FullName string `json:"full_name" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Phone    string `json:"phone" binding:"required"`
		Password string `json:"password" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError("Invalid payer registration request: %v", err)
		utils.BadRequest(c, "Invalid request", err.Error())
		return
	}

	var existing models.Payer
	if err := config.DB.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		utils.LogError("Payer email already registered: %s", req.Email)
		utils.Conflict(c, "Email already registered", nil)
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.LogError("Failed to hash password: %v", err)
		utils.InternalServerError(c, "Failed to process registration", nil)
		return
	}

	payer := models.Payer{
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: hash,
	}
	if err := config.DB.Create(&payer).Error; err != nil {
		utils.LogError("Failed to create payer: %v", err)
		utils.InternalServerError(c, "Failed to create account", err.Error())
		return
	}
	utils.LogInfo("Payer registered: %s", payer.ID)

	utils.Created(c, "Payer registered successfully", gin.H{
		"id":        payer.ID,
		"full_name": payer.FullName,
		"email":     payer.Email,
	})
}

// LoginMerchant authenticates a merchant and issues a JWT
func LoginMerchant(c *gin.Context) {
	utils.LogInfo("LoginMerchant called")
	login(c, utils.RoleMerchant)
}

// LoginPayer authenticates a payer and issues a JWT
func LoginPayer(c *gin.Context) {
	utils.LogInfo("LoginPayer called")
	login(c, utils.RolePayer)
}

func login(c *gin.Context, role string) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError("Invalid login request: %v", err)
		utils.BadRequest(c, "Invalid request", err.Error())
		return
	}

	db := config.DB
	var (
		token string
		err   error
		data  gin.H
	)

	if role == utils.RoleMerchant {
		var merchant models.Merchant
		if err = db.Where("email = ?", req.Email).First(&merchant).Error; err != nil || !utils.CheckPassword(req.Password, merchant.Password) {
			loginRejected(c, req.Email, err)
			return
		}
		token, err = utils.GenerateToken(merchant.ID, merchant.Email, role)
		data = gin.H{"id": merchant.ID, "business_name": merchant.BusinessName, "email": merchant.Email}
	} else {
		var payer models.Payer
		if err = db.Where("email = ?", req.Email).First(&payer).Error; err != nil || !utils.CheckPassword(req.Password, payer.Password) {
			loginRejected(c, req.Email, err)
			return
		}
		token, err = utils.GenerateToken(payer.ID, payer.Email, role)
		data = gin.H{"id": payer.ID, "full_name": payer.FullName, "email": payer.Email}
	}

	if err != nil {
		utils.LogError("Failed to generate token for %s: %v", req.Email, err)
		utils.InternalServerError(c, "Failed to generate token", nil)
		return
	}

	data["token"] = token
	data["role"] = role
	utils.Success(c, "Login successful", data)
}

func loginRejected(c *gin.Context, email string, err error) {
	if err != nil && err != gorm.ErrRecordNotFound {
		utils.LogError("Login lookup failed for %s: %v", email, err)
	} else {
		utils.LogError("Invalid credentials for %s", email)
	}
	utils.Unauthorized(c, "Invalid email or password")
}
