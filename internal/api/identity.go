package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/bounty-gin/internal/auth"
	"github.com/mautops/bounty-gin/internal/utils"
)

// callerOf 获取已认证的调用方,缺失时写出 401
func callerOf(ctx *gin.Context) (string, bool) {
	caller, ok := auth.GetUserID(ctx)
	if !ok {
		Error(ctx, http.StatusUnauthorized, "unauthenticated", "")
		return "", false
	}
	return caller, true
}

// pathID 读取并验证路径中的任务或提交 ID
func pathID(ctx *gin.Context, name string) (string, bool) {
	id := ctx.Param(name)
	if err := utils.ValidateID(id); err != nil {
		HandleError(ctx, err)
		return "", false
	}
	return id, true
}

// pathIdentity 读取并验证路径中的身份
func pathIdentity(ctx *gin.Context, name string) (string, bool) {
	identity := ctx.Param(name)
	if err := utils.ValidateIdentity(identity); err != nil {
		HandleError(ctx, err)
		return "", false
	}
	return identity, true
}
