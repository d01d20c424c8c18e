package ledger

// TaskStatus 任务状态,只能向前迁移
type TaskStatus string

const (
	TaskActive     TaskStatus = "active"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskExpired    TaskStatus = "expired"
	TaskCancelled  TaskStatus = "cancelled"
)

var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskActive:     {TaskInProgress, TaskExpired, TaskCancelled},
	TaskInProgress: {TaskCompleted, TaskExpired},
}

// CanTransition 判断是否允许迁移到目标状态
func (s TaskStatus) CanTransition(to TaskStatus) bool {
	for _, allowed := range taskTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition 迁移到目标状态,不允许时返回 ErrInvalidTransition
func (s TaskStatus) Transition(to TaskStatus) (TaskStatus, error) {
	if !s.CanTransition(to) {
		return s, ErrInvalidTransition.With("from", string(s)).With("to", string(to))
	}
	return to, nil
}

// Terminal 是否为终态
func (s TaskStatus) Terminal() bool {
	return len(taskTransitions[s]) == 0
}

// Claimable 是否接受认领和提交
func (s TaskStatus) Claimable() bool {
	return s == TaskActive || s == TaskInProgress
}

// SubmissionStatus 提交状态
type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionVerified SubmissionStatus = "verified"
	SubmissionRejected SubmissionStatus = "rejected"
	SubmissionDisputed SubmissionStatus = "disputed"
)

// 争议只能由所有者仲裁到通过或拒绝
var submissionTransitions = map[SubmissionStatus][]SubmissionStatus{
	SubmissionPending:  {SubmissionVerified, SubmissionRejected, SubmissionDisputed},
	SubmissionDisputed: {SubmissionVerified, SubmissionRejected},
}

// CanTransition 判断是否允许迁移到目标状态
func (s SubmissionStatus) CanTransition(to SubmissionStatus) bool {
	for _, allowed := range submissionTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition 迁移到目标状态,不允许时返回 ErrInvalidTransition
func (s SubmissionStatus) Transition(to SubmissionStatus) (SubmissionStatus, error) {
	if !s.CanTransition(to) {
		return s, ErrInvalidTransition.With("from", string(s)).With("to", string(to))
	}
	return to, nil
}

// Finalized 是否已达成共识(可以结算)
func (s SubmissionStatus) Finalized() bool {
	return s == SubmissionVerified || s == SubmissionRejected
}

// Category 任务分类
type Category string

const (
	CategoryPhotoVerification Category = "photo_verification"
	CategoryLocationCheck     Category = "location_check"
	CategorySurvey            Category = "survey"
	CategoryPriceMonitoring   Category = "price_monitoring"
	CategoryBusinessHours     Category = "business_hours"
)

// Categories 全部分类
var Categories = []Category{
	CategoryPhotoVerification,
	CategoryLocationCheck,
	CategorySurvey,
	CategoryPriceMonitoring,
	CategoryBusinessHours,
}

// ParseCategory 解析分类
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", ErrInvalidParams.With("category", s)
}
