package core

import (
	"regexp"
	"time"

	"compartilar-backend-go/internal/access"
	"compartilar-backend-go/internal/models"
)

const birthDateLayout = "2006-01-02"

var fieldNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,63}$`)

// ValidBirthDate reports whether s is a YYYY-MM-DD date that is not after now.
func ValidBirthDate(s string, now time.Time) bool {
	d, err := time.Parse(birthDateLayout, s)
	if err != nil {
		return false
	}
	return !d.After(now)
}

// ValidFieldName reports whether name can be used as a plan field key.
func ValidFieldName(name string) bool {
	return fieldNamePattern.MatchString(name)
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// applyAccessChanges applies an UpdateAccessRequest to acl. Removals win over additions.
func applyAccessChanges(acl access.ACL, req models.UpdateAccessRequest) (access.ACL, error) {
	var err error
	for _, uid := range req.AddViewers {
		if acl, err = access.Grant(acl, uid, access.Viewer); err != nil {
			return acl, err
		}
	}
	for _, uid := range req.AddEditors {
		if acl, err = access.Grant(acl, uid, access.Editor); err != nil {
			return acl, err
		}
	}
	for _, uid := range req.Remove {
		if acl, err = access.Revoke(acl, uid); err != nil {
			return acl, err
		}
	}
	return acl, nil
}

func aclSnapshot(acl access.ACL) map[string]interface{} {
	return map[string]interface{}{
		"ownerId": acl.OwnerID,
		"editors": append([]string{}, acl.Editors...),
		"viewers": append([]string{}, acl.Viewers...),
	}
}
