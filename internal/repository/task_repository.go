package repository

import (
	"context"
	"time"

	"github.com/mautops/bounty-gin/internal/database"
	"github.com/mautops/bounty-gin/internal/model"
	"gorm.io/gorm"
)

// TaskRepository 任务仓储接口
type TaskRepository interface {
	Create(ctx context.Context, task *model.TaskModel) error
	Save(ctx context.Context, task *model.TaskModel) error
	FindByID(ctx context.Context, id string) (*model.TaskModel, error)
	FindByIDForUpdate(ctx context.Context, id string) (*model.TaskModel, error)
	FindByFilter(ctx context.Context, filter *TaskFilter) ([]*model.TaskModel, int64, error)
	FindOverdue(ctx context.Context, now time.Time, limit int) ([]*model.TaskModel, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// TaskFilter 任务查询过滤器
type TaskFilter struct {
	Status   *string
	Category *string
	Creator  *string
	Page     int
	PageSize int
}

// taskRepository 任务仓储实现
type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository 创建任务仓储
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

// Create 创建任务
func (r *taskRepository) Create(ctx context.Context, task *model.TaskModel) error {
	return database.Conn(ctx, r.db).Create(task).Error
}

// Save 保存任务
func (r *taskRepository) Save(ctx context.Context, task *model.TaskModel) error {
	return database.Conn(ctx, r.db).Save(task).Error
}

// FindByID 根据 ID 查找任务
func (r *taskRepository) FindByID(ctx context.Context, id string) (*model.TaskModel, error) {
	var task model.TaskModel
	if err := database.Conn(ctx, r.db).Where("id = ?", id).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// FindByIDForUpdate 根据 ID 查找任务并加行锁
func (r *taskRepository) FindByIDForUpdate(ctx context.Context, id string) (*model.TaskModel, error) {
	var task model.TaskModel
	if err := database.ForUpdate(database.Conn(ctx, r.db)).Where("id = ?", id).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// FindByFilter 根据过滤器分页查找任务
func (r *taskRepository) FindByFilter(ctx context.Context, filter *TaskFilter) ([]*model.TaskModel, int64, error) {
	var tasks []*model.TaskModel
	query := database.Conn(ctx, r.db).Model(&model.TaskModel{})

	page, pageSize := 1, 20
	if filter != nil {
		if filter.Status != nil {
			query = query.Where("status = ?", *filter.Status)
		}
		if filter.Category != nil {
			query = query.Where("category = ?", *filter.Category)
		}
		if filter.Creator != nil {
			query = query.Where("creator = ?", *filter.Creator)
		}
		if filter.Page > 0 {
			page = filter.Page
		}
		if filter.PageSize > 0 && filter.PageSize <= 100 {
			pageSize = filter.PageSize
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&tasks).Error
	return tasks, total, err
}

// FindOverdue 查找已过截止时间但仍未结束的任务
func (r *taskRepository) FindOverdue(ctx context.Context, now time.Time, limit int) ([]*model.TaskModel, error) {
	var tasks []*model.TaskModel
	err := database.Conn(ctx, r.db).
		Where("status IN ? AND deadline < ?", []string{"active", "in_progress"}, now).
		Order("deadline ASC").
		Limit(limit).
		Find(&tasks).Error
	return tasks, err
}

// CountByStatus 按状态统计任务数量
func (r *taskRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := database.Conn(ctx, r.db).Model(&model.TaskModel{}).
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
