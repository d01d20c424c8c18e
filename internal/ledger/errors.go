package ledger

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind 错误分类
type Kind string

const (
	KindValidation        Kind = "validation"
	KindAuthorization     Kind = "authorization"
	KindStateConflict     Kind = "state_conflict"
	KindTemporal          Kind = "temporal"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindNotFound          Kind = "not_found"
)

// Error 账本错误,Code 稳定可比较,Details 携带冲突记录、剩余等待时间、所需与可用金额等
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]interface{}
}

func (e *Error) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, e.Details[k]))
	}
	return e.Message + " (" + strings.Join(parts, ", ") + ")"
}

// Is 按 Code 比较,带详情的副本与哨兵错误相等
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// With 返回附加详情的副本,哨兵本身不被修改
func (e *Error) With(key string, value interface{}) *Error {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, Details: details}
}

// AsError 提取账本错误
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf 返回错误分类,非账本错误返回空
func KindOf(err error) Kind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return ""
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// 校验错误
var (
	ErrBountyTooLow       = newError(KindValidation, "BOUNTY_TOO_LOW", "bounty is below the minimum")
	ErrInvalidDeadline    = newError(KindValidation, "INVALID_DEADLINE", "deadline must be in the future")
	ErrInvalidLocation    = newError(KindValidation, "INVALID_LOCATION", "location is malformed")
	ErrInvalidParams      = newError(KindValidation, "INVALID_PARAMS", "invalid parameters")
	ErrInvalidAmount      = newError(KindValidation, "INVALID_AMOUNT", "amount must be positive")
	ErrInvalidContentHash = newError(KindValidation, "INVALID_CONTENT_HASH", "content hash is malformed")
	ErrEmptyMetadata      = newError(KindValidation, "EMPTY_METADATA", "metadata hash is empty")
	ErrOutsideGeofence    = newError(KindValidation, "OUTSIDE_GEOFENCE", "location is outside the task geofence")
	ErrInvalidTransition  = newError(KindValidation, "INVALID_TRANSITION", "invalid status transition")
)

// 授权错误
var (
	ErrUnauthorized  = newError(KindAuthorization, "UNAUTHORIZED", "caller is not authorized for this operation")
	ErrNotOwner      = newError(KindAuthorization, "NOT_OWNER", "caller is not the ledger owner")
	ErrNotCreator    = newError(KindAuthorization, "NOT_CREATOR", "caller did not create this task")
	ErrSelfReview    = newError(KindAuthorization, "SELF_REVIEW", "reviewer cannot verify their own submission")
	ErrCreatorReview = newError(KindAuthorization, "CREATOR_REVIEW", "task creator cannot verify submissions on their own task")
)

// 状态冲突
var (
	ErrTaskNotClaimable   = newError(KindStateConflict, "TASK_NOT_CLAIMABLE", "task is not open for claims")
	ErrTaskNotExpirable   = newError(KindStateConflict, "TASK_NOT_EXPIRABLE", "task cannot be expired")
	ErrTaskNotCancellable = newError(KindStateConflict, "TASK_NOT_CANCELLABLE", "task cannot be cancelled")
	ErrAlreadyClaimed     = newError(KindStateConflict, "ALREADY_CLAIMED", "worker already holds a claim on this task")
	ErrClaimLimitReached  = newError(KindStateConflict, "CLAIM_LIMIT_REACHED", "worker holds the maximum number of concurrent claims")
	ErrTaskFull           = newError(KindStateConflict, "TASK_FULL", "all worker slots are taken")
	ErrNoActiveClaim      = newError(KindStateConflict, "NO_ACTIVE_CLAIM", "worker holds no open claim on this task")
	ErrBlacklisted        = newError(KindStateConflict, "BLACKLISTED", "worker is blacklisted")
	ErrRateLimited        = newError(KindStateConflict, "RATE_LIMITED", "daily submission limit reached")
	ErrDuplicateContent   = newError(KindStateConflict, "DUPLICATE_CONTENT", "content hash already submitted")
	ErrNoStake            = newError(KindStateConflict, "NO_STAKE", "worker has nothing staked")
	ErrSubmissionClosed   = newError(KindStateConflict, "SUBMISSION_CLOSED", "submission is not open for review")
	ErrAlreadyStaked      = newError(KindStateConflict, "ALREADY_STAKED", "reviewer already staked on this submission")
	ErrAlreadyVoted       = newError(KindStateConflict, "ALREADY_VOTED", "reviewer already voted on this submission")
	ErrMaxReviewers       = newError(KindStateConflict, "MAX_REVIEWERS", "maximum number of reviewers reached")
	ErrNotStaked          = newError(KindStateConflict, "NOT_STAKED", "reviewer has not staked on this submission")
	ErrNotFinalized       = newError(KindStateConflict, "NOT_FINALIZED", "submission has not reached consensus")
	ErrAlreadyDistributed = newError(KindStateConflict, "ALREADY_DISTRIBUTED", "rewards already distributed")
	ErrNotDisputed        = newError(KindStateConflict, "NOT_DISPUTED", "submission is not disputed")
	ErrReputationTooLow   = newError(KindStateConflict, "REPUTATION_TOO_LOW", "worker reputation is below the task minimum")
	ErrBadgeRequired      = newError(KindStateConflict, "BADGE_REQUIRED", "task requires a category badge")
	ErrNotBlacklisted     = newError(KindStateConflict, "NOT_BLACKLISTED", "worker is not blacklisted")
	ErrAlreadyBlacklisted = newError(KindStateConflict, "ALREADY_BLACKLISTED", "worker is already blacklisted")
)

// 时间相关错误
var (
	ErrTaskDeadlinePassed = newError(KindTemporal, "DEADLINE_PASSED", "task deadline has passed")
	ErrDeadlineNotReached = newError(KindTemporal, "DEADLINE_NOT_REACHED", "task deadline has not passed yet")
	ErrClaimExpired       = newError(KindTemporal, "CLAIM_EXPIRED", "claim window has passed")
	ErrCoolingOff         = newError(KindTemporal, "TOO_EARLY", "cooling-off period has not elapsed")
	ErrTimestampInFuture  = newError(KindTemporal, "TIMESTAMP_IN_FUTURE", "timestamp is in the future")
	ErrTimestampTooOld    = newError(KindTemporal, "TIMESTAMP_TOO_OLD", "timestamp is older than the allowed age")
)

// 资金不足
var (
	ErrInsufficientEscrow = newError(KindInsufficientFunds, "INSUFFICIENT_ESCROW", "escrow balance is too low")
	ErrStakeTooLow        = newError(KindInsufficientFunds, "STAKE_TOO_LOW", "stake is below the minimum")
	ErrNoFees             = newError(KindInsufficientFunds, "NO_FEES", "platform fee pool is empty")
)

// 未找到
var (
	ErrTaskNotFound       = newError(KindNotFound, "TASK_NOT_FOUND", "task not found")
	ErrSubmissionNotFound = newError(KindNotFound, "SUBMISSION_NOT_FOUND", "submission not found")
	ErrEscrowNotFound     = newError(KindNotFound, "ESCROW_NOT_FOUND", "escrow not found")
)
