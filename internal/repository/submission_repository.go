package repository

import (
	"context"

	"github.com/mautops/bounty-gin/internal/database"
	"github.com/mautops/bounty-gin/internal/model"
	"github.com/mautops/bounty-gin/internal/money"
	"gorm.io/gorm"
)

// SubmissionRepository 提交仓储接口
type SubmissionRepository interface {
	Create(ctx context.Context, submission *model.SubmissionModel) error
	Save(ctx context.Context, submission *model.SubmissionModel) error
	FindByID(ctx context.Context, id string) (*model.SubmissionModel, error)
	FindByIDForUpdate(ctx context.Context, id string) (*model.SubmissionModel, error)
	FindByFilter(ctx context.Context, filter *SubmissionFilter) ([]*model.SubmissionModel, error)
	SumOutstanding(ctx context.Context, taskID string) (money.Amount, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// SubmissionFilter 提交查询过滤器
type SubmissionFilter struct {
	TaskID *string
	Worker *string
	Status *string
	Limit  int
}

// submissionRepository 提交仓储实现
type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository 创建提交仓储
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

// Create 创建提交
func (r *submissionRepository) Create(ctx context.Context, submission *model.SubmissionModel) error {
	return database.Conn(ctx, r.db).Create(submission).Error
}

// Save 保存提交
func (r *submissionRepository) Save(ctx context.Context, submission *model.SubmissionModel) error {
	return database.Conn(ctx, r.db).Save(submission).Error
}

// FindByID 根据 ID 查找提交
func (r *submissionRepository) FindByID(ctx context.Context, id string) (*model.SubmissionModel, error) {
	var submission model.SubmissionModel
	if err := database.Conn(ctx, r.db).Where("id = ?", id).First(&submission).Error; err != nil {
		return nil, err
	}
	return &submission, nil
}

// FindByIDForUpdate 根据 ID 查找提交并加行锁
func (r *submissionRepository) FindByIDForUpdate(ctx context.Context, id string) (*model.SubmissionModel, error) {
	var submission model.SubmissionModel
	if err := database.ForUpdate(database.Conn(ctx, r.db)).Where("id = ?", id).First(&submission).Error; err != nil {
		return nil, err
	}
	return &submission, nil
}

// FindByFilter 根据过滤器查找提交
func (r *submissionRepository) FindByFilter(ctx context.Context, filter *SubmissionFilter) ([]*model.SubmissionModel, error) {
	var submissions []*model.SubmissionModel
	query := database.Conn(ctx, r.db).Model(&model.SubmissionModel{})

	limit := 100
	if filter != nil {
		if filter.TaskID != nil {
			query = query.Where("task_id = ?", *filter.TaskID)
		}
		if filter.Worker != nil {
			query = query.Where("worker = ?", *filter.Worker)
		}
		if filter.Status != nil {
			query = query.Where("status = ?", *filter.Status)
		}
		if filter.Limit > 0 {
			limit = filter.Limit
		}
	}

	err := query.Order("submitted_at DESC").Limit(limit).Find(&submissions).Error
	return submissions, err
}

// SumOutstanding 统计任务上尚未结算的赏金快照总额
// 包括待审核、争议中以及已通过但未发放的提交
func (r *submissionRepository) SumOutstanding(ctx context.Context, taskID string) (money.Amount, error) {
	var total int64
	err := database.Conn(ctx, r.db).Model(&model.SubmissionModel{}).
		Select("COALESCE(SUM(bounty_amount), 0)").
		Where("task_id = ? AND (status IN ? OR (status = ? AND rewards_distributed = ?))",
			taskID, []string{"pending", "disputed"}, "verified", false).
		Scan(&total).Error
	return money.Amount(total), err
}

// CountByStatus 按状态统计提交数量
func (r *submissionRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := database.Conn(ctx, r.db).Model(&model.SubmissionModel{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// VoteRepository 投票仓储接口
type VoteRepository interface {
	Create(ctx context.Context, vote *model.VoteModel) error
	Save(ctx context.Context, vote *model.VoteModel) error
	Find(ctx context.Context, submissionID, reviewer string) (*model.VoteModel, error)
	FindBySubmissionID(ctx context.Context, submissionID string) ([]*model.VoteModel, error)
}

// voteRepository 投票仓储实现
type voteRepository struct {
	db *gorm.DB
}

// NewVoteRepository 创建投票仓储
func NewVoteRepository(db *gorm.DB) VoteRepository {
	return &voteRepository{db: db}
}

// Create 创建质押记录
func (r *voteRepository) Create(ctx context.Context, vote *model.VoteModel) error {
	return database.Conn(ctx, r.db).Create(vote).Error
}

// Save 保存投票
func (r *voteRepository) Save(ctx context.Context, vote *model.VoteModel) error {
	return database.Conn(ctx, r.db).Save(vote).Error
}

// Find 查找审核人在提交上的记录
func (r *voteRepository) Find(ctx context.Context, submissionID, reviewer string) (*model.VoteModel, error) {
	var vote model.VoteModel
	err := database.Conn(ctx, r.db).
		Where("submission_id = ? AND reviewer = ?", submissionID, reviewer).
		First(&vote).Error
	if err != nil {
		return nil, err
	}
	return &vote, nil
}

// FindBySubmissionID 按质押顺序查找提交的全部记录
func (r *voteRepository) FindBySubmissionID(ctx context.Context, submissionID string) ([]*model.VoteModel, error) {
	var votes []*model.VoteModel
	err := database.Conn(ctx, r.db).
		Where("submission_id = ?", submissionID).
		Order("staked_at ASC, id ASC").
		Find(&votes).Error
	return votes, err
}
