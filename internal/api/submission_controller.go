package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mautops/bounty-gin/internal/service"
)

// SubmissionController 提交与审核控制器
type SubmissionController struct {
	verificationService service.VerificationService
}

// NewSubmissionController 创建提交与审核控制器
func NewSubmissionController(verificationService service.VerificationService) *SubmissionController {
	return &SubmissionController{verificationService: verificationService}
}

// List 查询提交列表
// @Summary      查询提交列表
// @Tags         同行审核
// @Produce      json
// @Param        task_id query string false "任务 ID"
// @Param        worker  query string false "工作者"
// @Param        status  query string false "提交状态"
// @Param        limit   query int    false "数量上限"
// @Success      200  {object}  Response{data=[]service.SubmissionView}
// @Router       /submissions [get]
// @Security     BearerAuth
func (c *SubmissionController) List(ctx *gin.Context) {
	var req service.ListSubmissionsRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		BindError(ctx, err)
		return
	}

	submissions, err := c.verificationService.List(ctx.Request.Context(), &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, submissions)
}

// Get 获取提交详情
// @Summary      获取提交详情
// @Tags         同行审核
// @Produce      json
// @Param        id path string true "提交 ID"
// @Success      200  {object}  Response{data=service.SubmissionView}
// @Failure      404  {object}  ErrorResponse
// @Router       /submissions/{id} [get]
// @Security     BearerAuth
func (c *SubmissionController) Get(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	submission, err := c.verificationService.Get(ctx.Request.Context(), id)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, submission)
}

// Stake 审核质押
// @Summary      质押成为审核人
// @Description  质押不低于最低金额,提交人与任务发布者不能审核
// @Tags         同行审核
// @Accept       json
// @Produce      json
// @Param        id      path string               true "提交 ID"
// @Param        request body service.StakeRequest true "质押金额"
// @Success      200  {object}  Response{data=service.VoteView}
// @Failure      403  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /submissions/{id}/stake [post]
// @Security     BearerAuth
func (c *SubmissionController) Stake(ctx *gin.Context) {
	caller, ok := callerOf(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req service.StakeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		BindError(ctx, err)
		return
	}

	vote, err := c.verificationService.Stake(ctx.Request.Context(), caller, id, &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, vote)
}

// Vote 投票
// @Summary      审核投票
// @Description  已质押的审核人投票,达到共识阈值后提交终结
// @Tags         同行审核
// @Accept       json
// @Produce      json
// @Param        id      path string              true "提交 ID"
// @Param        request body service.VoteRequest true "投票"
// @Success      200  {object}  Response{data=ledger.VoteOutcome}
// @Failure      403  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /submissions/{id}/votes [post]
// @Security     BearerAuth
func (c *SubmissionController) Vote(ctx *gin.Context) {
	caller, ok := callerOf(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req service.VoteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		BindError(ctx, err)
		return
	}

	outcome, err := c.verificationService.Vote(ctx.Request.Context(), caller, id, &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, outcome)
}

// Votes 查询投票
// @Summary      查询提交的质押与投票
// @Tags         同行审核
// @Produce      json
// @Param        id path string true "提交 ID"
// @Success      200  {object}  Response{data=[]service.VoteView}
// @Failure      404  {object}  ErrorResponse
// @Router       /submissions/{id}/votes [get]
// @Security     BearerAuth
func (c *SubmissionController) Votes(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	votes, err := c.verificationService.Votes(ctx.Request.Context(), id)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, votes)
}

// Distribute 结算
// @Summary      分配审核奖励
// @Description  共识后经过冷静期即可结算,任何人都可触发,重复调用返回冲突
// @Tags         同行审核
// @Produce      json
// @Param        id path string true "提交 ID"
// @Success      200  {object}  Response{data=ledger.Settlement}
// @Failure      409  {object}  ErrorResponse
// @Failure      422  {object}  ErrorResponse
// @Router       /submissions/{id}/distribute [post]
// @Security     BearerAuth
func (c *SubmissionController) Distribute(ctx *gin.Context) {
	caller, ok := callerOf(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	settlement, err := c.verificationService.Distribute(ctx.Request.Context(), caller, id)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, settlement)
}

// History 查询提交状态历史
// @Summary      查询提交状态历史
// @Tags         同行审核
// @Produce      json
// @Param        id path string true "提交 ID"
// @Success      200  {object}  Response{data=[]service.StateHistory}
// @Router       /submissions/{id}/history [get]
// @Security     BearerAuth
func (c *SubmissionController) History(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	history, err := c.verificationService.History(ctx.Request.Context(), id)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, history)
}
