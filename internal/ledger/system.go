package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/mautops/bounty-gin/internal/authz"
	"github.com/mautops/bounty-gin/internal/logging"
	"github.com/mautops/bounty-gin/internal/model"
	"github.com/mautops/bounty-gin/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Options 账本系统依赖
type Options struct {
	DB         *gorm.DB
	Params     Params
	Authorizer authz.Authorizer
	Clock      Clock
	Transferer FundsTransferer
	Logger     *logrus.Logger
}

// System 装配好的五个账本组件
type System struct {
	Params       Params
	Tasks        *TaskLedger
	Escrow       *Escrow
	AntiFraud    *AntiFraud
	Verification *Verification
	Reputation   *Reputation

	authz   authz.Authorizer
	journal *journal
	log     *logrus.Entry
}

// NewSystem 创建账本系统。Authorizer 为空时使用数据库授权表,Transferer 为空时记入内部账户
func NewSystem(opts Options) (*System, error) {
	if opts.DB == nil {
		return nil, errors.New("ledger: database is required")
	}
	if err := opts.Params.Validate(); err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetLogger()
	}
	if opts.Authorizer == nil {
		opts.Authorizer = authz.NewDBAuthorizer(repository.NewGrantRepository(opts.DB))
	}
	if opts.Transferer == nil {
		opts.Transferer = NewAccountTransferer(repository.NewAccountRepository(opts.DB), opts.Clock)
	}

	locks := NewKeyedMutex()
	jr := newJournal(
		repository.NewStateHistoryRepository(opts.DB),
		repository.NewEventRepository(opts.DB),
		opts.Clock,
	)
	base := func(name string) component {
		return component{
			name:    name,
			db:      opts.DB,
			locks:   locks,
			authz:   opts.Authorizer,
			clock:   opts.Clock,
			params:  opts.Params,
			journal: jr,
			log:     logging.Component(opts.Logger, name),
		}
	}
	pl := &pools{repo: repository.NewPoolRepository(opts.DB), clock: opts.Clock}
	submissions := repository.NewSubmissionRepository(opts.DB)

	reputation := &Reputation{
		component: base("reputation"),
		repo:      repository.NewReputationRepository(opts.DB),
	}
	escrow := &Escrow{
		component:  base("escrow"),
		escrows:    repository.NewEscrowRepository(opts.DB),
		pools:      pl,
		transferer: opts.Transferer,
	}
	antifraud := &AntiFraud{
		component: base("antifraud"),
		repo:      repository.NewAntiFraudRepository(opts.DB),
		pools:     pl,
	}
	verification := &Verification{
		component:   base("verification"),
		submissions: submissions,
		votes:       repository.NewVoteRepository(opts.DB),
		pools:       pl,
		transferer:  opts.Transferer,
		escrow:      escrow,
		antifraud:   antifraud,
		reputation:  reputation,
	}
	tasks := &TaskLedger{
		component:    base("task_ledger"),
		tasks:        repository.NewTaskRepository(opts.DB),
		claims:       repository.NewClaimRepository(opts.DB),
		submissions:  submissions,
		escrow:       escrow,
		antifraud:    antifraud,
		reputation:   reputation,
		verification: verification,
	}
	verification.tasks = tasks

	return &System{
		Params:       opts.Params,
		Tasks:        tasks,
		Escrow:       escrow,
		AntiFraud:    antifraud,
		Verification: verification,
		Reputation:   reputation,
		authz:        opts.Authorizer,
		journal:      jr,
		log:          logging.Component(opts.Logger, "ledger"),
	}, nil
}

// DefaultPolicy 组件间默认授权
func DefaultPolicy() *authz.Policy {
	return &authz.Policy{Grants: []authz.PolicyEntry{
		{
			Caller: PrincipalTaskLedger,
			Operations: []string{
				OpDeposit,
				OpRefundBounty,
				OpCheckAndRecordSubmission,
				OpCreateSubmission,
				OpPenalize,
			},
		},
		{
			Caller: PrincipalVerification,
			Operations: []string{
				OpDistributeReward,
				OpForfeitStake,
				OpRecordVerified,
				OpRecordRejected,
				OpUpdateWorker,
				OpUpdateWorkerCategory,
				OpUpdateVerifier,
			},
		},
	}}
}

// Grant 所有者授权调用方执行操作
func (s *System) Grant(ctx context.Context, caller, principal, operation string) error {
	if err := s.checkGrant(caller, principal, operation); err != nil {
		return err
	}
	if err := s.authz.Grant(ctx, principal, operation, caller); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"principal": principal, "operation": operation, "owner": caller}).Info("Grant added")
	return nil
}

// Revoke 所有者撤销授权
func (s *System) Revoke(ctx context.Context, caller, principal, operation string) error {
	if err := s.checkGrant(caller, principal, operation); err != nil {
		return err
	}
	if err := s.authz.Revoke(ctx, principal, operation); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"principal": principal, "operation": operation, "owner": caller}).Info("Grant revoked")
	return nil
}

// ApplyPolicy 写入策略中的全部授权
func (s *System) ApplyPolicy(ctx context.Context, caller string, policy *authz.Policy) (int, error) {
	if err := s.Tasks.requireOwner(caller); err != nil {
		return 0, err
	}
	grants := policy.Flatten()
	for _, g := range grants {
		if err := s.Grant(ctx, caller, g.Caller, g.Operation); err != nil {
			return 0, fmt.Errorf("failed to apply grant %s -> %s: %w", g.Caller, g.Operation, err)
		}
	}
	return len(grants), nil
}

// Grants 当前全部授权
func (s *System) Grants(ctx context.Context) ([]authz.Grant, error) {
	return s.authz.List(ctx)
}

func (s *System) checkGrant(caller, principal, operation string) error {
	if err := s.Tasks.requireOwner(caller); err != nil {
		return err
	}
	if principal == "" {
		return ErrInvalidParams.With("field", "principal")
	}
	for _, op := range Operations {
		if op == operation {
			return nil
		}
	}
	return ErrInvalidParams.With("field", "operation").With("operation", operation)
}

// History 资源的状态历史
func (s *System) History(ctx context.Context, resourceType, resourceID string) ([]*model.StateHistoryModel, error) {
	return s.journal.History(ctx, resourceType, resourceID)
}
