package repository

import (
	"context"
	"time"

	"github.com/mautops/bounty-gin/internal/database"
	"github.com/mautops/bounty-gin/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AntiFraudRepository 反作弊状态仓储接口
type AntiFraudRepository interface {
	FindActivity(ctx context.Context, worker string) (*model.WorkerActivityModel, error)
	EnsureActivity(ctx context.Context, worker string, at time.Time) (*model.WorkerActivityModel, error)
	SaveActivity(ctx context.Context, activity *model.WorkerActivityModel) error
	FindBlacklisted(ctx context.Context) ([]*model.WorkerActivityModel, error)
	FindContentHash(ctx context.Context, hash string) (*model.ContentHashModel, error)
	CreateContentHash(ctx context.Context, entry *model.ContentHashModel) error
	AppendLog(ctx context.Context, entry *model.SubmissionLogModel) error
	FindLogs(ctx context.Context, worker string, limit int) ([]*model.SubmissionLogModel, error)
}

// antiFraudRepository 反作弊状态仓储实现
type antiFraudRepository struct {
	db *gorm.DB
}

// NewAntiFraudRepository 创建反作弊状态仓储
func NewAntiFraudRepository(db *gorm.DB) AntiFraudRepository {
	return &antiFraudRepository{db: db}
}

// FindActivity 查找工人状态
func (r *antiFraudRepository) FindActivity(ctx context.Context, worker string) (*model.WorkerActivityModel, error) {
	var activity model.WorkerActivityModel
	if err := database.Conn(ctx, r.db).Where("worker = ?", worker).First(&activity).Error; err != nil {
		return nil, err
	}
	return &activity, nil
}

// EnsureActivity 不存在时创建工人状态,返回加锁后的记录
func (r *antiFraudRepository) EnsureActivity(ctx context.Context, worker string, at time.Time) (*model.WorkerActivityModel, error) {
	conn := database.Conn(ctx, r.db)
	if err := conn.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.WorkerActivityModel{Worker: worker, UpdatedAt: at}).Error; err != nil {
		return nil, err
	}
	var activity model.WorkerActivityModel
	if err := database.ForUpdate(conn).Where("worker = ?", worker).First(&activity).Error; err != nil {
		return nil, err
	}
	return &activity, nil
}

// SaveActivity 保存工人状态
func (r *antiFraudRepository) SaveActivity(ctx context.Context, activity *model.WorkerActivityModel) error {
	return database.Conn(ctx, r.db).Save(activity).Error
}

// FindBlacklisted 查找被拉黑的工人
func (r *antiFraudRepository) FindBlacklisted(ctx context.Context) ([]*model.WorkerActivityModel, error) {
	var activities []*model.WorkerActivityModel
	err := database.Conn(ctx, r.db).Where("blacklisted = ?", true).Order("worker ASC").Find(&activities).Error
	return activities, err
}

// FindContentHash 查找内容哈希归属
func (r *antiFraudRepository) FindContentHash(ctx context.Context, hash string) (*model.ContentHashModel, error) {
	var entry model.ContentHashModel
	if err := database.Conn(ctx, r.db).Where("hash = ?", hash).First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// CreateContentHash 登记内容哈希,主键冲突即重复
func (r *antiFraudRepository) CreateContentHash(ctx context.Context, entry *model.ContentHashModel) error {
	return database.Conn(ctx, r.db).Create(entry).Error
}

// AppendLog 追加提交日志
func (r *antiFraudRepository) AppendLog(ctx context.Context, entry *model.SubmissionLogModel) error {
	return database.Conn(ctx, r.db).Create(entry).Error
}

// FindLogs 按时间顺序查找工人提交日志
func (r *antiFraudRepository) FindLogs(ctx context.Context, worker string, limit int) ([]*model.SubmissionLogModel, error) {
	var logs []*model.SubmissionLogModel
	err := database.Conn(ctx, r.db).
		Where("worker = ?", worker).
		Order("created_at ASC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
