// Package authz 管理组件之间的调用授权
//
// 授权以 (调用方身份, 操作) 二元组表示,例如 ("component:task_ledger", "escrow.deposit")。
// 写入和撤销只能由账本所有者发起,由调用方在上层校验。
package authz

import (
	"context"
	"fmt"
	"time"

	"github.com/mautops/bounty-gin/internal/model"
	"github.com/mautops/bounty-gin/internal/repository"
)

// Grant 授权关系
type Grant struct {
	Caller    string    `json:"caller" yaml:"caller"`
	Operation string    `json:"operation" yaml:"operation"`
	GrantedBy string    `json:"granted_by,omitempty" yaml:"-"`
	CreatedAt time.Time `json:"created_at,omitempty" yaml:"-"`
}

// Authorizer 授权后端
type Authorizer interface {
	Allowed(ctx context.Context, caller, operation string) (bool, error)
	Grant(ctx context.Context, caller, operation, grantedBy string) error
	Revoke(ctx context.Context, caller, operation string) error
	List(ctx context.Context) ([]Grant, error)
}

// dbAuthorizer 基于数据库授权表的实现
type dbAuthorizer struct {
	repo repository.GrantRepository
	now  func() time.Time
}

// NewDBAuthorizer 创建数据库授权后端
func NewDBAuthorizer(repo repository.GrantRepository) Authorizer {
	return &dbAuthorizer{repo: repo, now: time.Now}
}

// Allowed 检查授权
func (a *dbAuthorizer) Allowed(ctx context.Context, caller, operation string) (bool, error) {
	ok, err := a.repo.Exists(ctx, caller, operation)
	if err != nil {
		return false, fmt.Errorf("failed to check grant: %w", err)
	}
	return ok, nil
}

// Grant 写入授权
func (a *dbAuthorizer) Grant(ctx context.Context, caller, operation, grantedBy string) error {
	if err := a.repo.Save(ctx, &model.GrantModel{
		Caller:    caller,
		Operation: operation,
		GrantedBy: grantedBy,
		CreatedAt: a.now(),
	}); err != nil {
		return fmt.Errorf("failed to save grant: %w", err)
	}
	return nil
}

// Revoke 撤销授权
func (a *dbAuthorizer) Revoke(ctx context.Context, caller, operation string) error {
	if err := a.repo.Delete(ctx, caller, operation); err != nil {
		return fmt.Errorf("failed to delete grant: %w", err)
	}
	return nil
}

// List 列出全部授权
func (a *dbAuthorizer) List(ctx context.Context) ([]Grant, error) {
	models, err := a.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	grants := make([]Grant, 0, len(models))
	for _, m := range models {
		grants = append(grants, Grant{
			Caller:    m.Caller,
			Operation: m.Operation,
			GrantedBy: m.GrantedBy,
			CreatedAt: m.CreatedAt,
		})
	}
	return grants, nil
}

// cachedAuthorizer 带缓存的授权后端
type cachedAuthorizer struct {
	inner Authorizer
	cache *PermissionCache
}

// NewCachedAuthorizer 为授权后端加上 TTL 缓存,写入和撤销时清除对应条目
func NewCachedAuthorizer(inner Authorizer, cache *PermissionCache) Authorizer {
	return &cachedAuthorizer{inner: inner, cache: cache}
}

func cacheKey(caller, operation string) string {
	return caller + "|" + operation
}

// Allowed 检查授权（带缓存）
func (a *cachedAuthorizer) Allowed(ctx context.Context, caller, operation string) (bool, error) {
	key := cacheKey(caller, operation)
	if value, found := a.cache.Get(key); found {
		return value, nil
	}

	allowed, err := a.inner.Allowed(ctx, caller, operation)
	if err != nil {
		return false, err
	}
	a.cache.Set(key, allowed)
	return allowed, nil
}

// Grant 写入授权（清除相关缓存）
func (a *cachedAuthorizer) Grant(ctx context.Context, caller, operation, grantedBy string) error {
	if err := a.inner.Grant(ctx, caller, operation, grantedBy); err != nil {
		return err
	}
	a.cache.Delete(cacheKey(caller, operation))
	return nil
}

// Revoke 撤销授权（清除相关缓存）
func (a *cachedAuthorizer) Revoke(ctx context.Context, caller, operation string) error {
	if err := a.inner.Revoke(ctx, caller, operation); err != nil {
		return err
	}
	a.cache.Delete(cacheKey(caller, operation))
	return nil
}

// List 列出全部授权
func (a *cachedAuthorizer) List(ctx context.Context) ([]Grant, error) {
	return a.inner.List(ctx)
}
