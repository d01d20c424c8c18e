package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mautops/bounty-gin/internal/service"
)

// StatisticsController 统计控制器
type StatisticsController struct {
	statisticsService service.StatisticsService
}

// NewStatisticsController 创建统计控制器
func NewStatisticsController(statisticsService service.StatisticsService) *StatisticsController {
	return &StatisticsController{statisticsService: statisticsService}
}

// Tasks 任务统计
// @Summary      任务统计
// @Description  按状态、类别统计任务数量
// @Tags         统计
// @Produce      json
// @Success      200  {object}  Response
// @Router       /statistics/tasks [get]
// @Security     BearerAuth
func (c *StatisticsController) Tasks(ctx *gin.Context) {
	byState, err := c.statisticsService.TasksByState(ctx.Request.Context())
	if err != nil {
		HandleError(ctx, err)
		return
	}
	byCategory, err := c.statisticsService.TasksByCategory(ctx.Request.Context())
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, gin.H{
		"by_state":    byState,
		"by_category": byCategory,
	})
}

// dailyQuery 按日统计参数
type dailyQuery struct {
	Days int `form:"days" binding:"omitempty,min=1,max=90"`
}

// Daily 按日统计
// @Summary      按日统计任务发布数
// @Tags         统计
// @Produce      json
// @Param        days query int false "天数,默认 7"
// @Success      200  {object}  Response{data=[]service.DailyStatistics}
// @Failure      400  {object}  ErrorResponse
// @Router       /statistics/tasks/daily [get]
// @Security     BearerAuth
func (c *StatisticsController) Daily(ctx *gin.Context) {
	q := dailyQuery{Days: 7}
	if err := ctx.ShouldBindQuery(&q); err != nil {
		BindError(ctx, err)
		return
	}

	daily, err := c.statisticsService.TasksByDay(ctx.Request.Context(), q.Days)
	if err != nil {
		HandleError(ctx, err)
		return
	}
	Success(ctx, daily)
}

// Verification 审核统计
// @Summary      审核统计
// @Description  提交状态分布、通过率和平均共识耗时
// @Tags         统计
// @Produce      json
// @Success      200  {object}  Response
// @Router       /statistics/verification [get]
// @Security     BearerAuth
func (c *StatisticsController) Verification(ctx *gin.Context) {
	summary, err := c.statisticsService.Verification(ctx.Request.Context())
	if err != nil {
		HandleError(ctx, err)
		return
	}
	byState, err := c.statisticsService.SubmissionsByState(ctx.Request.Context())
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, gin.H{
		"summary":  summary,
		"by_state": byState,
	})
}

// Pools 资金池
// @Summary      资金池余额
// @Tags         统计
// @Produce      json
// @Success      200  {object}  Response{data=[]service.PoolBalance}
// @Router       /statistics/pools [get]
// @Security     BearerAuth
func (c *StatisticsController) Pools(ctx *gin.Context) {
	pools, err := c.statisticsService.Pools(ctx.Request.Context())
	if err != nil {
		HandleError(ctx, err)
		return
	}
	Success(ctx, pools)
}
