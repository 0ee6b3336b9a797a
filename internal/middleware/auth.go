package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"building_chat/internal/utils"
)

// 放在 gin.Context 中的使用者資訊
const (
	ContextUserID   = "userID"
	ContextUserRole = "userRole"
	ContextUserName = "userName"
)

// AuthMiddleware 是一個 Gin 中間件，用於驗證請求的 JWT token。
// 瀏覽器的 WebSocket 無法自訂標頭，所以也接受 ?token= 查詢參數。
func AuthMiddleware(tokens *utils.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			// 從請求頭中獲取 Authorization 字段
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
				return
			}

			// 檢查 Authorization 頭的格式
			parts := strings.SplitN(authHeader, " ", 2)
			if !(len(parts) == 2 && parts[0] == "Bearer") {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
				return
			}
			token = parts[1]
		}

		claims, err := tokens.ParseToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, claims.Role)
		c.Set(ContextUserName, claims.Name)
		c.Next()
	}
}

// UserID 取出已驗證的使用者 ID
func UserID(c *gin.Context) uint {
	return c.GetUint(ContextUserID)
}
