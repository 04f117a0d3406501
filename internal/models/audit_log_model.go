package models

import "time"

// Audit actions.
const (
	AuditUserInitialize    = "USER_INITIALIZE"
	AuditUserUpdate        = "USER_UPDATE"
	AuditChildCreate       = "CHILD_CREATE"
	AuditChildDelete       = "CHILD_DELETE"
	AuditChildShare        = "CHILD_SHARE"
	AuditPlanCreate        = "PLAN_CREATE"
	AuditPlanDelete        = "PLAN_DELETE"
	AuditPlanShare         = "PLAN_SHARE"
	AuditFriendAccept      = "FRIEND_ACCEPT"
	AuditFriendRemove      = "FRIEND_REMOVE"
	AuditCheckoutCreate    = "BILLING_CHECKOUT_CREATE"
	AuditSubscriptionEvent = "BILLING_SUBSCRIPTION_EVENT"
)

// AuditLog is a security-relevant event stored in audit_logs. Entity-level history lives in change_history.
type AuditLog struct {
	ID         string                 `json:"id" firestore:"-"`
	Timestamp  time.Time              `json:"timestamp" firestore:"timestamp,serverTimestamp"`
	UserID     string                 `json:"userId" firestore:"userId"`
	Action     string                 `json:"action" firestore:"action"`
	TargetType string                 `json:"targetType,omitempty" firestore:"targetType,omitempty"` // CHILD, PLAN, USER, SUBSCRIPTION
	TargetID   string                 `json:"targetId,omitempty" firestore:"targetId,omitempty"`
	IPAddress  string                 `json:"ipAddress,omitempty" firestore:"ipAddress,omitempty"`
	UserAgent  string                 `json:"userAgent,omitempty" firestore:"userAgent,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty" firestore:"details,omitempty"`
}
