package models

import "time"

// InitializeUserRequest is the optional body of POST /users/initialize.
type InitializeUserRequest struct {
	Username    string `json:"username,omitempty" binding:"omitempty,username"`
	DisplayName string `json:"displayName,omitempty" binding:"omitempty,max=100"`
	FirstName   string `json:"firstName,omitempty" binding:"omitempty,max=100"`
	LastName    string `json:"lastName,omitempty" binding:"omitempty,max=100"`
}

// UpdateProfileRequest uses pointers so absent fields are left untouched.
type UpdateProfileRequest struct {
	Username    *string `json:"username,omitempty" binding:"omitempty,username"`
	DisplayName *string `json:"displayName,omitempty" binding:"omitempty,max=100"`
	FirstName   *string `json:"firstName,omitempty" binding:"omitempty,max=100"`
	LastName    *string `json:"lastName,omitempty" binding:"omitempty,max=100"`
	PhoneNumber *string `json:"phoneNumber,omitempty" binding:"omitempty,max=30"`
	PhotoURL    *string `json:"photoURL,omitempty" binding:"omitempty,max=2048"`
}

type CreateChildRequest struct {
	FirstName    string `json:"firstName" binding:"required,max=100"`
	LastName     string `json:"lastName,omitempty" binding:"omitempty,max=100"`
	BirthDate    string `json:"birthDate" binding:"required,birthdate"`
	Gender       string `json:"gender,omitempty" default:"undisclosed" binding:"omitempty,oneof=male female other undisclosed"`
	Relationship string `json:"relationship,omitempty" default:"biological" binding:"omitempty,oneof=biological adopted step guardian other"`
	PhotoURL     string `json:"photoURL,omitempty" binding:"omitempty,max=2048"`
}

type UpdateChildRequest struct {
	FirstName    *string `json:"firstName,omitempty" binding:"omitempty,min=1,max=100"`
	LastName     *string `json:"lastName,omitempty" binding:"omitempty,max=100"`
	BirthDate    *string `json:"birthDate,omitempty" binding:"omitempty,birthdate"`
	Gender       *string `json:"gender,omitempty" binding:"omitempty,oneof=male female other undisclosed"`
	Relationship *string `json:"relationship,omitempty" binding:"omitempty,oneof=biological adopted step guardian other"`
	PhotoURL     *string `json:"photoURL,omitempty" binding:"omitempty,max=2048"`
}

// UpdateAccessRequest adds or removes members of a child or plan ACL.
// A uid listed in both an add list and Remove is removed.
type UpdateAccessRequest struct {
	AddEditors []string `json:"addEditors,omitempty" binding:"omitempty,dive,required"`
	AddViewers []string `json:"addViewers,omitempty" binding:"omitempty,dive,required"`
	Remove     []string `json:"remove,omitempty" binding:"omitempty,dive,required"`
}

type CreateEventRequest struct {
	Title               string      `json:"title" binding:"required,max=200"`
	Description         string      `json:"description,omitempty" binding:"omitempty,max=5000"`
	Location            string      `json:"location,omitempty" binding:"omitempty,max=500"`
	StartDate           time.Time   `json:"startDate" binding:"required"`
	EndDate             time.Time   `json:"endDate" binding:"required,gtefield=StartDate"`
	AllDay              bool        `json:"allDay"`
	Category            string      `json:"category,omitempty" default:"other" binding:"omitempty,oneof=custody school medical activity holiday other"`
	IsPrivate           bool        `json:"isPrivate"`
	ResponsibleParentID string      `json:"responsibleParentId,omitempty"`
	Recurrence          *Recurrence `json:"recurrence,omitempty"`
	Reminder            *Reminder   `json:"reminder,omitempty"`
}

// UpdateEventRequest is a partial update. ClearRecurrence and ClearReminder remove those settings.
type UpdateEventRequest struct {
	Title               *string     `json:"title,omitempty" binding:"omitempty,min=1,max=200"`
	Description         *string     `json:"description,omitempty" binding:"omitempty,max=5000"`
	Location            *string     `json:"location,omitempty" binding:"omitempty,max=500"`
	StartDate           *time.Time  `json:"startDate,omitempty"`
	EndDate             *time.Time  `json:"endDate,omitempty"`
	AllDay              *bool       `json:"allDay,omitempty"`
	Category            *string     `json:"category,omitempty" binding:"omitempty,oneof=custody school medical activity holiday other"`
	IsPrivate           *bool       `json:"isPrivate,omitempty"`
	ResponsibleParentID *string     `json:"responsibleParentId,omitempty"`
	Recurrence          *Recurrence `json:"recurrence,omitempty"`
	Reminder            *Reminder   `json:"reminder,omitempty"`
	ClearRecurrence     bool        `json:"clearRecurrence,omitempty"`
	ClearReminder       bool        `json:"clearReminder,omitempty"`
}

// ListEventsQuery bounds an event listing. Zero values are filled in by the service.
type ListEventsQuery struct {
	From time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To   time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
}

type CreatePlanRequest struct {
	Title       string   `json:"title" binding:"required,max=200"`
	ChildrenIDs []string `json:"childrenIds" binding:"required,min=1,dive,required"`
}

type UpdatePlanRequest struct {
	Title       *string   `json:"title,omitempty" binding:"omitempty,min=1,max=200"`
	ChildrenIDs *[]string `json:"childrenIds,omitempty" binding:"omitempty,min=1,dive,required"`
	Status      *string   `json:"status,omitempty" binding:"omitempty,oneof=active archived"`
}

// FieldProposalRequest carries a new value for a plan field. A null value clears the field.
type FieldProposalRequest struct {
	Value   *string `json:"value" binding:"omitempty,max=10000"`
	Comment string  `json:"comment,omitempty" binding:"omitempty,max=1000"`
}

type FieldReviewRequest struct {
	Comment string `json:"comment,omitempty" binding:"omitempty,max=1000"`
}

// SendFriendRequestRequest identifies the receiver by uid or by username.
type SendFriendRequestRequest struct {
	ReceiverID       string   `json:"receiverId,omitempty" binding:"required_without=ReceiverUsername"`
	ReceiverUsername string   `json:"receiverUsername,omitempty" binding:"omitempty,username"`
	RelationshipType string   `json:"relationshipType,omitempty" default:"coparent" binding:"oneof=coparent support other"`
	SharedChildren   []string `json:"sharedChildren,omitempty" binding:"omitempty,dive,required"`
}

type ListFriendRequestsQuery struct {
	Direction string `form:"direction" default:"incoming" binding:"oneof=incoming outgoing"`
}

type ListQuery struct {
	Limit      int  `form:"limit" default:"50" binding:"min=1,max=200"`
	UnreadOnly bool `form:"unread"`
}

type CheckoutSessionRequest struct {
	PlanID string `json:"planId" binding:"required"`
}
