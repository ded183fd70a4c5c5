package entity

// Request status constants
const (
	RequestStatusPending   = "pending"
	RequestStatusApproved  = "approved"
	RequestStatusRejected  = "rejected"
	RequestStatusWithdrawn = "withdrawn"
	RequestStatusVoided    = "voided"
)

// Task status constants. Superseded marks tasks closed by the engine
// (sibling completion, rejection, withdraw or void), never by an approver.
const (
	TaskStatusPending    = "pending"
	TaskStatusApproved   = "approved"
	TaskStatusRejected   = "rejected"
	TaskStatusSuperseded = "superseded"
)

// Decision constants accepted by DecideTask
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// Assignee kinds
const (
	AssigneeManager  = "manager"
	AssigneeRole     = "role"
	AssigneeUser     = "user"
	AssigneeUsersAny = "users_any"
	AssigneeUsersAll = "users_all"
)

// Condition kinds
const (
	ConditionNone       = "none"
	ConditionMinAmount  = "min_amount"
	ConditionMaxAmount  = "max_amount"
	ConditionMinDays    = "min_days"
	ConditionDeptIn     = "dept_in"
	ConditionCategoryIn = "category_in"
)

// Scope kinds
const (
	ScopeGlobal = "global"
	ScopeDept   = "dept"
)

// AllUsersTokens expand a users_any/users_all assignee value to every active user.
var AllUsersTokens = map[string]bool{
	"all":      true,
	"*":        true,
	"everyone": true,
}

// IsValidAssigneeKind reports whether kind is a known assignee kind.
func IsValidAssigneeKind(kind string) bool {
	switch kind {
	case AssigneeManager, AssigneeRole, AssigneeUser, AssigneeUsersAny, AssigneeUsersAll:
		return true
	}
	return false
}

// IsQuorumKind reports whether kind fans out one task per resolved user.
func IsQuorumKind(kind string) bool {
	return kind == AssigneeUsersAny || kind == AssigneeUsersAll
}

// IsValidConditionKind reports whether kind is a known condition kind.
// The empty string is treated as none.
func IsValidConditionKind(kind string) bool {
	switch kind {
	case "", ConditionNone, ConditionMinAmount, ConditionMaxAmount, ConditionMinDays, ConditionDeptIn, ConditionCategoryIn:
		return true
	}
	return false
}

// IsTerminalRequestStatus reports whether no further transitions are allowed.
func IsTerminalRequestStatus(status string) bool {
	switch status {
	case RequestStatusApproved, RequestStatusRejected, RequestStatusWithdrawn, RequestStatusVoided:
		return true
	}
	return false
}
