package models

import (
	"time"

	"compartilar-backend-go/internal/access"
	"compartilar-backend-go/internal/approval"
)

const (
	PlanStatusActive   = "active"
	PlanStatusArchived = "archived"
)

// ApprovalSections are the plan sections whose fields go through the approval workflow.
var ApprovalSections = map[string]bool{
	"education": true,
}

// ParentalPlan is a document in the parental_plans collection.
type ParentalPlan struct {
	ID          string                                      `json:"id" firestore:"-"`
	Title       string                                      `json:"title" firestore:"title"`
	ChildrenIDs []string                                    `json:"childrenIds" firestore:"childrenIds"`
	OwnerID     string                                      `json:"ownerId" firestore:"ownerId"`
	Editors     []string                                    `json:"editors" firestore:"editors"`
	Viewers     []string                                    `json:"viewers" firestore:"viewers"`
	CreatedBy   string                                      `json:"createdBy" firestore:"createdBy"`
	Sections    map[string]map[string]*approval.FieldStatus `json:"sections" firestore:"sections"`
	Status      string                                      `json:"status" firestore:"status"`
	IsDeleted   bool                                        `json:"-" firestore:"isDeleted"`
	DeletedAt   *time.Time                                  `json:"-" firestore:"deletedAt,omitempty"`
	CreatedAt   time.Time                                   `json:"createdAt" firestore:"createdAt"`
	UpdatedAt   time.Time                                   `json:"updatedAt" firestore:"updatedAt"`
}

func (p *ParentalPlan) ACL() access.ACL {
	return access.ACL{OwnerID: p.OwnerID, Editors: p.Editors, Viewers: p.Viewers}
}

func (p *ParentalPlan) SetACL(acl access.ACL) {
	acl = acl.Normalize()
	p.OwnerID, p.Editors, p.Viewers = acl.OwnerID, acl.Editors, acl.Viewers
}

// Field returns the status record for section.name, creating it when absent.
func (p *ParentalPlan) Field(section, name string) *approval.FieldStatus {
	if p.Sections == nil {
		p.Sections = make(map[string]map[string]*approval.FieldStatus)
	}
	fields, ok := p.Sections[section]
	if !ok || fields == nil {
		fields = make(map[string]*approval.FieldStatus)
		p.Sections[section] = fields
	}
	f, ok := fields[name]
	if !ok || f == nil {
		f = &approval.FieldStatus{}
		fields[name] = f
	}
	return f
}
