package models

import "time"

// Changelog actions.
const (
	ActionCreate      = "create"
	ActionUpdate      = "update"
	ActionDelete      = "delete"
	ActionShare       = "share"
	ActionEventCreate = "event_create"
	ActionEventUpdate = "event_update"
	ActionEventDelete = "event_delete"
	ActionFieldPrefix = "field_"
)

// ChangeLogEntry is an append-only audit record stored in a change_history subcollection.
type ChangeLogEntry struct {
	ID           string                 `json:"id" firestore:"-"`
	Timestamp    time.Time              `json:"timestamp" firestore:"timestamp"`
	UserID       string                 `json:"userId" firestore:"userId"`
	Action       string                 `json:"action" firestore:"action"`
	EntityType   string                 `json:"entityType" firestore:"entityType"`
	EntityID     string                 `json:"entityId" firestore:"entityId"`
	FieldsBefore map[string]interface{} `json:"fieldsBefore,omitempty" firestore:"fieldsBefore,omitempty"`
	FieldsAfter  map[string]interface{} `json:"fieldsAfter,omitempty" firestore:"fieldsAfter,omitempty"`
	Description  string                 `json:"description,omitempty" firestore:"description,omitempty"`
}

// DiffFields keeps only the keys whose values changed between before and after.
func DiffFields(before, after map[string]interface{}) (map[string]interface{}, map[string]interface{}) {
	b := make(map[string]interface{})
	a := make(map[string]interface{})
	for k, av := range after {
		bv := before[k]
		if !equalValue(av, bv) {
			b[k] = bv
			a[k] = av
		}
	}
	return b, a
}

func equalValue(x, y interface{}) bool {
	switch xv := x.(type) {
	case time.Time:
		yv, ok := y.(time.Time)
		return ok && xv.Equal(yv)
	case []string:
		yv, ok := y.([]string)
		if !ok || len(xv) != len(yv) {
			return false
		}
		for i := range xv {
			if xv[i] != yv[i] {
				return false
			}
		}
		return true
	}
	return x == y
}
