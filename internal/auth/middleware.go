package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// 上下文键
const (
	ContextUserID   = "user_id"
	ContextUsername = "username"
	ContextRoles    = "roles"
)

// AdminKeyHeader 管理员密钥请求头
const AdminKeyHeader = "X-Admin-Key"

// Identity 已认证的调用方
type Identity struct {
	Subject  string
	Username string
	Roles    []string
}

// TokenValidator 令牌验证器
type TokenValidator interface {
	Validate(token string) (*Identity, error)
}

// IdentityMiddleware Bearer 令牌认证中间件,身份写入 gin 上下文
func IdentityMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    401,
				"message": "missing authorization header",
			})
			c.Abort()
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		identity, err := validator.Validate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    401,
				"message": "invalid token",
				"detail":  err.Error(),
			})
			c.Abort()
			return
		}

		c.Set(ContextUserID, identity.Subject)
		c.Set(ContextUsername, identity.Username)
		c.Set(ContextRoles, identity.Roles)

		c.Next()
	}
}

// GetUserID 从上下文获取调用方身份
func GetUserID(c *gin.Context) (string, bool) {
	value, exists := c.Get(ContextUserID)
	if !exists {
		return "", false
	}
	userID, ok := value.(string)
	return userID, ok && userID != ""
}

// HashAdminKey 使用 bcrypt 哈希管理员密钥
func HashAdminKey(key string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyAdminKey 校验管理员密钥
func VerifyAdminKey(key, hash string) bool {
	if key == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}

// AdminKeyMiddleware 管理接口的第二道校验,未配置哈希时拒绝所有请求
func AdminKeyMiddleware(hash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !VerifyAdminKey(c.GetHeader(AdminKeyHeader), hash) {
			c.JSON(http.StatusForbidden, gin.H{
				"code":    403,
				"message": "invalid admin key",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
