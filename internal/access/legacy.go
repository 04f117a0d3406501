package access

// ownerFields lists the historical names of the owner field, highest precedence first.
var ownerFields = []string{"ownerId", "owner", "createdBy", "created_by", "parentId"}

// Legacy builds an ACL from a raw document whose owner may be stored under any
// of the historical field names. Missing arrays are treated as empty.
func Legacy(fields map[string]interface{}) ACL {
	var acl ACL
	for _, name := range ownerFields {
		if s, ok := fields[name].(string); ok && s != "" {
			acl.OwnerID = s
			break
		}
	}
	acl.Editors = stringSlice(fields["editors"])
	acl.Viewers = stringSlice(fields["viewers"])
	return acl.Normalize()
}

func stringSlice(v interface{}) []string {
	switch vals := v.(type) {
	case []string:
		return append([]string(nil), vals...)
	case []interface{}:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
