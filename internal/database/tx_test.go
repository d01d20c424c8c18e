package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mautops/bounty-gin/internal/config"
	"github.com/mautops/bounty-gin/internal/database"
	"github.com/mautops/bounty-gin/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect(config.DatabaseConfig{Driver: "sqlite", Path: "file::memory:"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// TestTransaction_Rollback 测试内层错误回滚外层写入
func TestTransaction_Rollback(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := database.Transaction(ctx, db, func(ctx context.Context) error {
		assert.True(t, database.InTx(ctx))
		if err := database.Conn(ctx, db).Create(&model.PoolModel{Name: "p", UpdatedAt: time.Now()}).Error; err != nil {
			return err
		}
		// 嵌套调用加入同一事务
		return database.Transaction(ctx, db, func(inner context.Context) error {
			return boom
		})
	})
	assert.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, db.Model(&model.PoolModel{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

// TestTransaction_Commit 测试提交
func TestTransaction_Commit(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	assert.False(t, database.InTx(ctx))

	err := database.Transaction(ctx, db, func(ctx context.Context) error {
		return database.ForUpdate(database.Conn(ctx, db)).Create(&model.PoolModel{Name: "p", UpdatedAt: time.Now()}).Error
	})
	require.NoError(t, err)

	var pool model.PoolModel
	require.NoError(t, db.First(&pool, "name = ?", "p").Error)
}

// TestConnect_UnsupportedDriver 测试不支持的驱动
func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := database.Connect(config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

// TestCheckHealth 测试健康检查
func TestCheckHealth(t *testing.T) {
	assert.False(t, database.CheckHealth(nil))
	assert.True(t, database.CheckHealth(setupDB(t)))
}
