package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mautops/bounty-gin/internal/service"
)

// TaskController 任务控制器
type TaskController struct {
	taskService service.TaskService
}

// NewTaskController 创建任务控制器
func NewTaskController(taskService service.TaskService) *TaskController {
	return &TaskController{
		taskService: taskService,
	}
}

// Create 创建任务
// @Summary      发布悬赏任务
// @Description  发布任务并把资金存入托管,funds 按 max_workers 平分为每个名额的赏金
// @Tags         任务管理
// @Accept       json
// @Produce      json
// @Param        request body service.CreateTaskRequest true "任务信息"
// @Success      201  {object}  Response{data=service.TaskView}
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Router       /tasks [post]
// @Security     BearerAuth
func (c *TaskController) Create(ctx *gin.Context) {
	caller, ok := callerOf(ctx)
	if !ok {
		return
	}

	var req service.CreateTaskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		BindError(ctx, err)
		return
	}

	task, err := c.taskService.Create(ctx.Request.Context(), caller, &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Created(ctx, task)
}

// List 查询任务列表
// @Summary      查询任务列表
// @Description  按状态、类别、发布者过滤并分页
// @Tags         任务管理
// @Produce      json
// @Param        status    query string false "任务状态"
// @Param        category  query string false "任务类别"
// @Param        creator   query string false "发布者"
// @Param        page      query int    false "页码"
// @Param        page_size query int    false "每页数量"
// @Success      200  {object}  PaginatedResponse{data=[]service.TaskView}
// @Failure      400  {object}  ErrorResponse
// @Router       /tasks [get]
// @Security     BearerAuth
func (c *TaskController) List(ctx *gin.Context) {
	var req service.ListTasksRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		BindError(ctx, err)
		return
	}

	tasks, total, err := c.taskService.List(ctx.Request.Context(), &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Paginated(ctx, tasks, NewPaginationInfo(req.Page, req.PageSize, total))
}

// Get 获取任务
// @Summary      获取任务详情
// @Tags         任务管理
// @Produce      json
// @Param        id path string true "任务 ID"
// @Success      200  {object}  Response{data=service.TaskView}
// @Failure      404  {object}  ErrorResponse
// @Router       /tasks/{id} [get]
// @Security     BearerAuth
func (c *TaskController) Get(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	task, err := c.taskService.Get(ctx.Request.Context(), id)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, task)
}

// Claim 认领任务
// @Summary      认领任务
// @Description  工作者认领一个名额,认领在窗口期后失效
// @Tags         任务管理
// @Produce      json
// @Param        id path string true "任务 ID"
// @Success      200  {object}  Response{data=service.ClaimView}
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /tasks/{id}/claim [post]
// @Security     BearerAuth
func (c *TaskController) Claim(ctx *gin.Context) {
	caller, ok := callerOf(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	claim, err := c.taskService.Claim(ctx.Request.Context(), caller, id)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, claim)
}

// Submit 提交完成证据
// @Summary      提交完成证据
// @Description  提交内容哈希、元数据哈希和拍摄位置,进入同行审核
// @Tags         任务管理
// @Accept       json
// @Produce      json
// @Param        id      path string                          true "任务 ID"
// @Param        request body service.SubmitCompletionRequest true "完成证据"
// @Success      201  {object}  Response{data=service.SubmissionView}
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /tasks/{id}/submissions [post]
// @Security     BearerAuth
func (c *TaskController) Submit(ctx *gin.Context) {
	caller, ok := callerOf(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req service.SubmitCompletionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		BindError(ctx, err)
		return
	}

	submission, err := c.taskService.Submit(ctx.Request.Context(), caller, id, &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Created(ctx, submission)
}

// Expire 使任务过期
// @Summary      使任务过期
// @Description  截止时间之后任何人都可触发,未分配的托管余额退还发布者
// @Tags         任务管理
// @Produce      json
// @Param        id path string true "任务 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /tasks/{id}/expire [post]
// @Security     BearerAuth
func (c *TaskController) Expire(ctx *gin.Context) {
	caller, ok := callerOf(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	expired, err := c.taskService.Expire(ctx.Request.Context(), caller, id)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, gin.H{"task_id": id, "expired": expired})
}

// Cancel 取消任务
// @Summary      取消任务
// @Description  发布者取消尚无人认领的任务,托管余额扣除退款手续费后退还
// @Tags         任务管理
// @Produce      json
// @Param        id path string true "任务 ID"
// @Success      200  {object}  Response{data=ledger.Payout}
// @Failure      403  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /tasks/{id}/cancel [post]
// @Security     BearerAuth
func (c *TaskController) Cancel(ctx *gin.Context) {
	caller, ok := callerOf(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	payout, err := c.taskService.Cancel(ctx.Request.Context(), caller, id)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, payout)
}

// Claims 查询认领记录
// @Summary      查询任务认领记录
// @Tags         任务管理
// @Produce      json
// @Param        id path string true "任务 ID"
// @Success      200  {object}  Response{data=[]service.ClaimView}
// @Failure      404  {object}  ErrorResponse
// @Router       /tasks/{id}/claims [get]
// @Security     BearerAuth
func (c *TaskController) Claims(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	claims, err := c.taskService.Claims(ctx.Request.Context(), id)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, claims)
}

// Escrow 查询托管
// @Summary      查询任务托管余额
// @Tags         任务管理
// @Produce      json
// @Param        id path string true "任务 ID"
// @Success      200  {object}  Response{data=service.EscrowView}
// @Failure      404  {object}  ErrorResponse
// @Router       /tasks/{id}/escrow [get]
// @Security     BearerAuth
func (c *TaskController) Escrow(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	escrow, err := c.taskService.Escrow(ctx.Request.Context(), id)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, escrow)
}

// History 查询状态历史
// @Summary      查询任务状态历史
// @Tags         任务管理
// @Produce      json
// @Param        id path string true "任务 ID"
// @Success      200  {object}  Response{data=[]service.StateHistory}
// @Failure      404  {object}  ErrorResponse
// @Router       /tasks/{id}/history [get]
// @Security     BearerAuth
func (c *TaskController) History(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	history, err := c.taskService.History(ctx.Request.Context(), id)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, history)
}
