package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mautops/bounty-gin/internal/service"
)

// limitQuery 数量上限查询参数
type limitQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=500"`
}

// ReputationController 信誉与账户控制器
type ReputationController struct {
	reputationService service.ReputationService
}

// NewReputationController 创建信誉与账户控制器
func NewReputationController(reputationService service.ReputationService) *ReputationController {
	return &ReputationController{reputationService: reputationService}
}

// Profile 信誉概览
// @Summary      查询信誉概览
// @Description  未出现过的身份返回默认分数 50
// @Tags         信誉
// @Produce      json
// @Param        identity path string true "身份"
// @Success      200  {object}  Response{data=service.ReputationProfile}
// @Failure      400  {object}  ErrorResponse
// @Router       /reputation/{identity} [get]
// @Security     BearerAuth
func (c *ReputationController) Profile(ctx *gin.Context) {
	identity, ok := pathIdentity(ctx, "identity")
	if !ok {
		return
	}

	profile, err := c.reputationService.Profile(ctx.Request.Context(), identity)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, profile)
}

// Category 类别信誉
// @Summary      查询类别统计与徽章
// @Tags         信誉
// @Produce      json
// @Param        identity path string true "身份"
// @Param        category path string true "任务类别"
// @Success      200  {object}  Response{data=service.CategoryReputation}
// @Failure      400  {object}  ErrorResponse
// @Router       /reputation/{identity}/categories/{category} [get]
// @Security     BearerAuth
func (c *ReputationController) Category(ctx *gin.Context) {
	identity, ok := pathIdentity(ctx, "identity")
	if !ok {
		return
	}

	stats, err := c.reputationService.Category(ctx.Request.Context(), identity, ctx.Param("category"))
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, stats)
}

// Leaderboard 排行榜
// @Summary      信誉排行榜
// @Tags         信誉
// @Produce      json
// @Param        limit query int false "数量上限"
// @Success      200  {object}  Response{data=[]ledger.ReputationData}
// @Router       /reputation [get]
// @Security     BearerAuth
func (c *ReputationController) Leaderboard(ctx *gin.Context) {
	var q limitQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		BindError(ctx, err)
		return
	}

	board, err := c.reputationService.Leaderboard(ctx.Request.Context(), q.Limit)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, board)
}

// Account 账户余额与流水
// @Summary      查询账户余额、保证金与划转流水
// @Tags         账户
// @Produce      json
// @Param        identity path  string true  "身份"
// @Param        limit    query int    false "流水数量上限"
// @Success      200  {object}  Response{data=service.AccountView}
// @Router       /accounts/{identity} [get]
// @Security     BearerAuth
func (c *ReputationController) Account(ctx *gin.Context) {
	identity, ok := pathIdentity(ctx, "identity")
	if !ok {
		return
	}
	var q limitQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		BindError(ctx, err)
		return
	}

	account, err := c.reputationService.Account(ctx.Request.Context(), identity, q.Limit)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, account)
}
