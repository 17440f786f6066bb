package auth

import "users-admin/internal/shared/model"

// DenyReason 拒绝原因
type DenyReason string

const (
	// DenyUnauthenticated 请求没有认证上下文
	DenyUnauthenticated DenyReason = "authentication required"
	// DenyNotOwnerNotAdmin 既不是记录所有者也不是管理员
	DenyNotOwnerNotAdmin DenyReason = "not owner, not admin"
	// DenyRoleChangeNeedsAdmin 角色变更仅限管理员
	DenyRoleChangeNeedsAdmin DenyReason = "role change requires admin"
)

// Decision 单次请求的访问决策，只在请求内使用，不持久化
type Decision struct {
	Allowed bool
	Reason  DenyReason // Allowed 为 true 时为空
}

var allow = Decision{Allowed: true}

func deny(reason DenyReason) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Decide 计算对目标用户记录执行变更的访问决策
//
// 规则按序评估，第一条失败的规则生效：
//  1. 无认证上下文 → 拒绝（未认证）
//  2. 非管理员且非本人 → 拒绝（越权）
//  3. 补丁含角色变更且非管理员 → 拒绝（即使规则 2 因本人身份通过）
//  4. 允许
//
// 管理员修改自己的角色是允许的；普通用户即使操作自己的记录，
// 角色字段也会在规则 3 被拒绝。
func Decide(requester *AuthUser, targetID int64, roleChange bool) Decision {
	if requester == nil {
		return deny(DenyUnauthenticated)
	}
	isAdmin := requester.Role == model.UserRoleAdmin
	if !isAdmin && requester.ID != targetID {
		return deny(DenyNotOwnerNotAdmin)
	}
	if roleChange && !isAdmin {
		return deny(DenyRoleChangeNeedsAdmin)
	}
	return allow
}
