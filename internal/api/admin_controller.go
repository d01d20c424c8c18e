package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/bounty-gin/internal/service"
)

// AdminController 平台管理控制器,所有者身份由账本校验,管理员密钥由路由中间件校验
type AdminController struct {
	adminService service.AdminService
	auditService service.AuditLogService
}

// NewAdminController 创建平台管理控制器
func NewAdminController(adminService service.AdminService, auditService service.AuditLogService) *AdminController {
	return &AdminController{
		adminService: adminService,
		auditService: auditService,
	}
}

// Blacklist 拉黑工作者
// @Summary      拉黑工作者
// @Tags         平台管理
// @Accept       json
// @Produce      json
// @Param        worker  path string                   true "工作者"
// @Param        request body service.BlacklistRequest true "原因"
// @Success      200  {object}  Response
// @Failure      403  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /admin/blacklist/{worker} [post]
// @Security     BearerAuth
// @Security     AdminKey
func (c *AdminController) Blacklist(ctx *gin.Context) {
	caller, ok := callerOf(ctx)
	if !ok {
		return
	}
	worker, ok := pathIdentity(ctx, "worker")
	if !ok {
		return
	}

	var req service.BlacklistRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		BindError(ctx, err)
		return
	}

	if err := c.adminService.Blacklist(ctx.Request.Context(), caller, worker, req.Reason); err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, gin.H{"worker": worker, "blacklisted": true})
}

// Unblacklist 解除拉黑
// @Summary      解除拉黑
// @Tags         平台管理
// @Produce      json
// @Param        worker path string true "工作者"
// @Success      200  {object}  Response
// @Failure      403  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /admin/blacklist/{worker} [delete]
// @Security     BearerAuth
// @Security     AdminKey
func (c *AdminController) Unblacklist(ctx *gin.Context) {
	caller, ok := callerOf(ctx)
	if !ok {
		return
	}
	worker, ok := pathIdentity(ctx, "worker")
	if !ok {
		return
	}

	if err := c.adminService.Unblacklist(ctx.Request.Context(), caller, worker); err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, gin.H{"worker": worker, "blacklisted": false})
}

// Blacklisted 黑名单
// @Summary      查询黑名单
// @Tags         平台管理
// @Produce      json
// @Success      200  {object}  Response{data=[]string}
// @Router       /admin/blacklist [get]
// @Security     BearerAuth
// @Security     AdminKey
func (c *AdminController) Blacklisted(ctx *gin.Context) {
	workers, err := c.adminService.Blacklisted(ctx.Request.Context())
	if err != nil {
		HandleError(ctx, err)
		return
	}
	Success(ctx, workers)
}

// Activity 工作者风控状态
// @Summary      查询工作者当日提交数、黑名单与保证金
// @Tags         平台管理
// @Produce      json
// @Param        worker path string true "工作者"
// @Success      200  {object}  Response{data=ledger.WorkerActivity}
// @Router       /admin/workers/{worker}/activity [get]
// @Security     BearerAuth
// @Security     AdminKey
func (c *AdminController) Activity(ctx *gin.Context) {
	worker, ok := pathIdentity(ctx, "worker")
	if !ok {
		return
	}

	activity, err := c.adminService.Activity(ctx.Request.Context(), worker)
	if err != nil {
		HandleError(ctx, err)
		return
	}
	Success(ctx, activity)
}

// DepositStake 登记保证金
// @Summary      登记工作者保证金
// @Tags         平台管理
// @Accept       json
// @Produce      json
// @Param        worker  path string                      true "工作者"
// @Param        request body service.DepositStakeRequest true "金额"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Router       /admin/stakes/{worker} [post]
// @Security     BearerAuth
// @Security     AdminKey
func (c *AdminController) DepositStake(ctx *gin.Context) {
	caller, ok := callerOf(ctx)
	if !ok {
		return
	}
	worker, ok := pathIdentity(ctx, "worker")
	if !ok {
		return
	}

	var req service.DepositStakeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		BindError(ctx, err)
		return
	}

	total, err := c.adminService.DepositStake(ctx.Request.Context(), caller, worker, req.Amount)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, gin.H{"worker": worker, "stake": total})
}

// WithdrawFees 提取平台费
// @Summary      提取累计平台费
// @Tags         平台管理
// @Produce      json
// @Success      200  {object}  Response
// @Failure      403  {object}  ErrorResponse
// @Failure      422  {object}  ErrorResponse
// @Router       /admin/fees/withdraw [post]
// @Security     BearerAuth
// @Security     AdminKey
func (c *AdminController) WithdrawFees(ctx *gin.Context) {
	caller, ok := callerOf(ctx)
	if !ok {
		return
	}

	amount, err := c.adminService.WithdrawFees(ctx.Request.Context(), caller)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, gin.H{"withdrawn": amount})
}

// ResolveDispute 仲裁争议
// @Summary      仲裁争议提交
// @Tags         平台管理
// @Accept       json
// @Produce      json
// @Param        id      path string                        true "提交 ID"
// @Param        request body service.ResolveDisputeRequest true "仲裁结果"
// @Success      200  {object}  Response{data=ledger.VoteOutcome}
// @Failure      403  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /admin/submissions/{id}/resolve [post]
// @Security     BearerAuth
// @Security     AdminKey
func (c *AdminController) ResolveDispute(ctx *gin.Context) {
	caller, ok := callerOf(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req service.ResolveDisputeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		BindError(ctx, err)
		return
	}

	outcome, err := c.adminService.ResolveDispute(ctx.Request.Context(), caller, id, *req.Approved)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, outcome)
}

// Grant 授予组件权限
// @Summary      授予组件权限
// @Tags         平台管理
// @Accept       json
// @Produce      json
// @Param        request body service.GrantRequest true "授权"
// @Success      201  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Router       /admin/grants [post]
// @Security     BearerAuth
// @Security     AdminKey
func (c *AdminController) Grant(ctx *gin.Context) {
	caller, ok := callerOf(ctx)
	if !ok {
		return
	}

	var req service.GrantRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		BindError(ctx, err)
		return
	}

	if err := c.adminService.Grant(ctx.Request.Context(), caller, &req); err != nil {
		HandleError(ctx, err)
		return
	}

	Created(ctx, req)
}

// Revoke 撤销组件权限
// @Summary      撤销组件权限
// @Tags         平台管理
// @Accept       json
// @Produce      json
// @Param        request body service.GrantRequest true "授权"
// @Success      200  {object}  Response
// @Failure      403  {object}  ErrorResponse
// @Router       /admin/grants [delete]
// @Security     BearerAuth
// @Security     AdminKey
func (c *AdminController) Revoke(ctx *gin.Context) {
	caller, ok := callerOf(ctx)
	if !ok {
		return
	}

	var req service.GrantRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		BindError(ctx, err)
		return
	}

	if err := c.adminService.Revoke(ctx.Request.Context(), caller, &req); err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, req)
}

// Grants 授权列表
// @Summary      查询组件授权
// @Tags         平台管理
// @Produce      json
// @Success      200  {object}  Response{data=[]authz.Grant}
// @Router       /admin/grants [get]
// @Security     BearerAuth
// @Security     AdminKey
func (c *AdminController) Grants(ctx *gin.Context) {
	grants, err := c.adminService.Grants(ctx.Request.Context())
	if err != nil {
		HandleError(ctx, err)
		return
	}
	Success(ctx, grants)
}

// auditQuery 审计日志查询参数
type auditQuery struct {
	User         string `form:"user"`
	ResourceType string `form:"resource_type"`
	ResourceID   string `form:"resource_id"`
}

// AuditLogs 审计日志
// @Summary      查询审计日志
// @Description  按操作人或资源查询,二者必选其一
// @Tags         平台管理
// @Produce      json
// @Param        user          query string false "操作人"
// @Param        resource_type query string false "资源类型"
// @Param        resource_id   query string false "资源 ID"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Router       /admin/audit-logs [get]
// @Security     BearerAuth
// @Security     AdminKey
func (c *AdminController) AuditLogs(ctx *gin.Context) {
	var q auditQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		BindError(ctx, err)
		return
	}

	switch {
	case q.User != "":
		logs, err := c.auditService.ListByUser(ctx.Request.Context(), q.User)
		if err != nil {
			HandleError(ctx, err)
			return
		}
		Success(ctx, logs)
	case q.ResourceType != "" && q.ResourceID != "":
		logs, err := c.auditService.ListByResource(ctx.Request.Context(), q.ResourceType, q.ResourceID)
		if err != nil {
			HandleError(ctx, err)
			return
		}
		Success(ctx, logs)
	default:
		Error(ctx, http.StatusBadRequest, "invalid request", "user or resource_type and resource_id required")
	}
}
