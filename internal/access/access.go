// Package access resolves what a caller may do with a shared document.
//
// Every shareable entity (children, parental plans) carries one ACL value:
// an owner, a list of editors and a list of viewers. Resolve is the only place
// that turns an ACL and a caller id into a Capability.
package access

import (
	"errors"
	"fmt"
)

// Capability is the access level a user has over a shared entity.
type Capability int

const (
	None Capability = iota
	Viewer
	Editor
	Owner
)

func (c Capability) String() string {
	switch c {
	case Viewer:
		return "viewer"
	case Editor:
		return "editor"
	case Owner:
		return "owner"
	default:
		return "none"
	}
}

// ErrDenied is wrapped by every DeniedError.
var ErrDenied = errors.New("access denied")

// DeniedError reports a capability check that failed.
type DeniedError struct {
	Have    Capability
	Need    Capability
	Message string
}

func (e *DeniedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("requires %s access, caller has %s", e.Need, e.Have)
}

func (e *DeniedError) Unwrap() error { return ErrDenied }

// ACL is the normalized access-control value attached to shareable entities.
type ACL struct {
	OwnerID string
	Editors []string
	Viewers []string
}

// Resolve classifies uid against acl. Owner wins over editor, editor over viewer.
func Resolve(acl ACL, uid string) Capability {
	if uid == "" {
		return None
	}
	if acl.OwnerID == uid {
		return Owner
	}
	if contains(acl.Editors, uid) {
		return Editor
	}
	if contains(acl.Viewers, uid) {
		return Viewer
	}
	return None
}

// Require returns a *DeniedError when uid resolves below min. msg overrides the
// default error text and is what callers end up showing to the client.
func Require(acl ACL, uid string, min Capability, msg string) error {
	have := Resolve(acl, uid)
	if have >= min {
		return nil
	}
	return &DeniedError{Have: have, Need: min, Message: msg}
}

// Members returns everyone with at least viewer access, owner first, without duplicates.
func (a ACL) Members() []string {
	out := make([]string, 0, 1+len(a.Editors)+len(a.Viewers))
	seen := make(map[string]struct{})
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	add(a.OwnerID)
	for _, id := range a.Editors {
		add(id)
	}
	for _, id := range a.Viewers {
		add(id)
	}
	return out
}

// Normalize returns a copy where the owner is always an editor, lists hold no
// duplicates or empty ids, and nobody is both editor and viewer.
func (a ACL) Normalize() ACL {
	out := ACL{OwnerID: a.OwnerID, Editors: []string{}, Viewers: []string{}}
	editors := make(map[string]struct{})
	if a.OwnerID != "" {
		out.Editors = append(out.Editors, a.OwnerID)
		editors[a.OwnerID] = struct{}{}
	}
	for _, id := range a.Editors {
		if id == "" {
			continue
		}
		if _, ok := editors[id]; ok {
			continue
		}
		editors[id] = struct{}{}
		out.Editors = append(out.Editors, id)
	}
	viewers := make(map[string]struct{})
	for _, id := range a.Viewers {
		if id == "" {
			continue
		}
		if _, ok := editors[id]; ok {
			continue
		}
		if _, ok := viewers[id]; ok {
			continue
		}
		viewers[id] = struct{}{}
		out.Viewers = append(out.Viewers, id)
	}
	return out
}

// ErrOwnerImmutable is returned when a sharing edit targets the owner.
var ErrOwnerImmutable = errors.New("the owner's access cannot be changed")

// Grant gives uid the requested level (Viewer or Editor), replacing any previous level.
func Grant(a ACL, uid string, level Capability) (ACL, error) {
	if uid == "" {
		return a, errors.New("user id is required")
	}
	if uid == a.OwnerID {
		return a, ErrOwnerImmutable
	}
	if level != Viewer && level != Editor {
		return a, fmt.Errorf("cannot grant %s access", level)
	}
	out := ACL{
		OwnerID: a.OwnerID,
		Editors: without(a.Editors, uid),
		Viewers: without(a.Viewers, uid),
	}
	if level == Editor {
		out.Editors = append(out.Editors, uid)
	} else {
		out.Viewers = append(out.Viewers, uid)
	}
	return out.Normalize(), nil
}

// Revoke removes uid from editors and viewers.
func Revoke(a ACL, uid string) (ACL, error) {
	if uid == a.OwnerID {
		return a, ErrOwnerImmutable
	}
	out := ACL{
		OwnerID: a.OwnerID,
		Editors: without(a.Editors, uid),
		Viewers: without(a.Viewers, uid),
	}
	return out.Normalize(), nil
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func without(list []string, id string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
