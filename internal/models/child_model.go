package models

import (
	"time"

	"compartilar-backend-go/internal/access"
)

// Child is a document in the children collection.
type Child struct {
	ID           string     `json:"id" firestore:"-"`
	FirstName    string     `json:"firstName" firestore:"firstName"`
	LastName     string     `json:"lastName,omitempty" firestore:"lastName"`
	BirthDate    string     `json:"birthDate" firestore:"birthDate"` // YYYY-MM-DD
	Gender       string     `json:"gender,omitempty" firestore:"gender"`
	Relationship string     `json:"relationship,omitempty" firestore:"relationship"`
	PhotoURL     string     `json:"photoURL,omitempty" firestore:"photoURL,omitempty"`
	OwnerID      string     `json:"ownerId" firestore:"ownerId"`
	Editors      []string   `json:"editors" firestore:"editors"`
	Viewers      []string   `json:"viewers" firestore:"viewers"`
	CreatedBy    string     `json:"createdBy" firestore:"createdBy"`
	IsDeleted    bool       `json:"-" firestore:"isDeleted"`
	DeletedAt    *time.Time `json:"-" firestore:"deletedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt" firestore:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt" firestore:"updatedAt"`
}

func (c *Child) ACL() access.ACL {
	return access.ACL{OwnerID: c.OwnerID, Editors: c.Editors, Viewers: c.Viewers}
}

func (c *Child) SetACL(acl access.ACL) {
	acl = acl.Normalize()
	c.OwnerID, c.Editors, c.Viewers = acl.OwnerID, acl.Editors, acl.Viewers
}

// Fields returns the editable fields as a map, used for changelog snapshots.
func (c *Child) Fields() map[string]interface{} {
	return map[string]interface{}{
		"firstName":    c.FirstName,
		"lastName":     c.LastName,
		"birthDate":    c.BirthDate,
		"gender":       c.Gender,
		"relationship": c.Relationship,
		"photoURL":     c.PhotoURL,
	}
}

// Child genders and relationships accepted by validation.
var (
	ChildGenders       = []string{"male", "female", "other", "undisclosed"}
	ChildRelationships = []string{"biological", "adopted", "step", "guardian", "other"}
)
