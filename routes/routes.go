package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/legalpay/legalpay/controllers"
	"github.com/legalpay/legalpay/middleware"
	"github.com/legalpay/legalpay/utils"
)

// SetupRouter initializes and returns the Gin router with all routes
func SetupRouter() *gin.Engine {
	router := gin.New()

	router.Use(utils.LoggerMiddleware())
	router.Use(utils.CORSMiddleware())
	router.Use(utils.RecoveryMiddleware())
	router.Use(utils.RequestIDMiddleware())
	router.Use(utils.SecurityHeadersMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/v1")
	{
		initAuthRoutes(api)
		initWebhookRoutes(api)
		initContractRoutes(api)
		initAdminRoutes(api)
	}

	return router
}

func initAuthRoutes(api *gin.RouterGroup) {
	auth := api.Group("/auth")
	{
		auth.POST("/merchants/register", controllers.RegisterMerchant)
		auth.POST("/merchants/login", controllers.LoginMerchant)
		auth.POST("/payers/register", controllers.RegisterPayer)
		auth.POST("/payers/login", controllers.LoginPayer)
	}
}

// Webhook endpoints authenticate by payload signature, not by bearer token.
func initWebhookRoutes(api *gin.RouterGroup) {
	webhooks := api.Group("/webhooks")
	{
		webhooks.POST("/razorpay", controllers.RazorpayWebhook)
		webhooks.POST("/esign", controllers.ESignWebhook)
	}
}

func initContractRoutes(api *gin.RouterGroup) {
	contracts := api.Group("/contracts")
	contracts.Use(middleware.AuthMiddleware())
	{
		contracts.GET("", controllers.ListContracts)
		contracts.GET("/:id", controllers.GetContract)
		contracts.GET("/:id/pdf", controllers.DownloadContractPDF)
		contracts.GET("/:id/payments", controllers.ListContractPayments)
		contracts.POST("/:id/orders", controllers.CreatePaymentOrder)
		contracts.GET("/:id/mandate", controllers.GetMandate)
		contracts.POST("/:id/mandate", controllers.CreateMandate)

		merchantOnly := contracts.Group("")
		merchantOnly.Use(middleware.MerchantMiddleware())
		{
			merchantOnly.POST("", controllers.CreateContract)
			merchantOnly.POST("/:id/esign", controllers.InitiateESign)
			merchantOnly.POST("/:id/cancel", controllers.CancelContract)
		}
	}

	payments := api.Group("/payments")
	payments.Use(middleware.AuthMiddleware())
	{
		payments.POST("/verify", controllers.VerifyPayment)
	}

	reports := api.Group("/reports")
	reports.Use(middleware.AuthMiddleware(), middleware.MerchantMiddleware())
	{
		reports.GET("/collections", controllers.DownloadCollectionsReport)
	}
}

func initAdminRoutes(api *gin.RouterGroup) {
	admin := api.Group("/admin")
	admin.Use(middleware.SchedulerMiddleware())
	{
		admin.POST("/contracts/sweep", controllers.SweepContracts)
	}
}
