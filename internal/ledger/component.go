package ledger

import (
	"context"
	"errors"

	"github.com/mautops/bounty-gin/internal/authz"
	"github.com/mautops/bounty-gin/internal/database"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// 组件身份,组件之间的调用以这些身份作为调用方
const (
	PrincipalTaskLedger   = "component:task_ledger"
	PrincipalEscrow       = "component:escrow"
	PrincipalAntiFraud    = "component:antifraud"
	PrincipalVerification = "component:verification"
	PrincipalReputation   = "component:reputation"
)

// 受授权保护的操作
const (
	OpDeposit                  = "escrow.deposit"
	OpDistributeReward         = "escrow.distribute_reward"
	OpRefundBounty             = "escrow.refund_bounty"
	OpCheckAndRecordSubmission = "antifraud.check_and_record_submission"
	OpForfeitStake             = "antifraud.forfeit_stake"
	OpCreateSubmission         = "verification.create_submission"
	OpRecordVerified           = "task_ledger.record_verified"
	OpRecordRejected           = "task_ledger.record_rejected"
	OpUpdateWorker             = "reputation.update_worker"
	OpUpdateWorkerCategory     = "reputation.update_worker_category"
	OpUpdateVerifier           = "reputation.update_verifier"
	OpPenalize                 = "reputation.penalize"
)

// Operations 全部受保护操作
var Operations = []string{
	OpDeposit,
	OpDistributeReward,
	OpRefundBounty,
	OpCheckAndRecordSubmission,
	OpForfeitStake,
	OpCreateSubmission,
	OpRecordVerified,
	OpRecordRejected,
	OpUpdateWorker,
	OpUpdateWorkerCategory,
	OpUpdateVerifier,
	OpPenalize,
}

// component 各账本组件共享的执行环境
type component struct {
	name    string
	db      *gorm.DB
	locks   *KeyedMutex
	authz   authz.Authorizer
	clock   Clock
	params  Params
	journal *journal
	log     *logrus.Entry
}

// exec 在事务中执行 fn。外层调用先获取键锁再开启事务,
// 嵌套调用已持有外层的锁和事务,直接执行
func (c *component) exec(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	if database.InTx(ctx) {
		return fn(ctx)
	}
	unlock := c.locks.Lock(keys...)
	defer unlock()
	return database.Transaction(ctx, c.db, fn)
}

// authorize 校验调用方对操作的授权
func (c *component) authorize(ctx context.Context, caller, op string) error {
	allowed, err := c.authz.Allowed(ctx, caller, op)
	if err != nil {
		return err
	}
	if !allowed {
		c.log.WithFields(logrus.Fields{"caller": caller, "operation": op}).Warn("Unauthorized call rejected")
		return ErrUnauthorized.With("caller", caller).With("operation", op)
	}
	return nil
}

// requireOwner 校验调用方是否为账本所有者
func (c *component) requireOwner(caller string) error {
	if caller != c.params.Owner {
		return ErrNotOwner.With("caller", caller)
	}
	return nil
}

func notFound(err error, sentinel *Error, id string) error {
	if isNotFound(err) {
		return sentinel.With("id", id)
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
