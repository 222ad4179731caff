package middleware

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/legalpay/legalpay/config"
	"github.com/legalpay/legalpay/models"
	"github.com/legalpay/legalpay/utils"
)

// AuthMiddleware resolves the request credential into a merchant or payer
// and sets it in the context. The core never sees ambient session state;
// everything downstream reads the resolved identity from the context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.LogError("Missing Authorization header")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Please login for access"})
			c.Abort()
			return
		}

		tokenString := strings.Replace(authHeader, "Bearer ", "", 1)
		if tokenString == authHeader {
			utils.LogError("Invalid Bearer token format")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Please login for access"})
			c.Abort()
			return
		}

		id, role, err := utils.ValidateToken(tokenString)
		if err != nil {
			utils.LogError("Invalid token: %v", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Please login for access"})
			c.Abort()
			return
		}

		switch role {
		case utils.RoleMerchant:
			var merchant models.Merchant
			if err := config.DB.First(&merchant, "id = ?", id).Error; err != nil {
				utils.LogError("Merchant not found: %v", err)
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Account not found"})
				c.Abort()
				return
			}
			c.Set("merchant", merchant)
		case utils.RolePayer:
			var payer models.Payer
			if err := config.DB.First(&payer, "id = ?", id).Error; err != nil {
				utils.LogError("Payer not found: %v", err)
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Account not found"})
				c.Abort()
				return
			}
			c.Set("payer", payer)
		default:
			utils.LogError("Unknown role in token: %s", role)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Please login for access"})
			c.Abort()
			return
		}

		c.Set("role", role)
		c.Next()
	}
}

// MerchantMiddleware requires the resolved credential to be a merchant
func MerchantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get("merchant"); !exists {
			utils.LogError("Non-merchant attempted merchant access")
			c.JSON(http.StatusForbidden, gin.H{"error": "Merchant access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// SchedulerMiddleware guards the sweep endpoint invoked by the external
// scheduler with a shared token
func SchedulerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := os.Getenv("SCHEDULER_TOKEN")
		if token == "" || c.GetHeader("X-Scheduler-Token") != token {
			utils.LogError("Scheduler endpoint called with invalid token")
			c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			c.Abort()
			return
		}
		c.Next()
	}
}
