package auth

import "strings"

// ClaimsExtractor extracts user fields from JWT claims.
type ClaimsExtractor struct {
	// RoleClaimPath is the dot-separated path to roles in claims.
	// e.g., "realm_access.roles" or "roles"
	RoleClaimPath string

	// RolePrefix filters roles to those starting with this prefix.
	RolePrefix string

	// EmailClaimPath is the path to the email claim.
	EmailClaimPath string

	// SubjectClaimPath is the path to the subject claim.
	SubjectClaimPath string
}

// Extract builds user info from claims. Missing or mistyped claims are left
// empty.
func (e *ClaimsExtractor) Extract(claims map[string]any) *UserInfo {
	u := &UserInfo{
		UserID: e.getStringValue(claims, e.SubjectClaimPath),
		Email:  e.getStringValue(claims, e.EmailClaimPath),
		Claims: claims,
	}
	if e.RoleClaimPath != "" {
		roles := e.getStringSlice(claims, e.RoleClaimPath)
		if e.RolePrefix != "" {
			roles = filterByPrefix(roles, e.RolePrefix)
		}
		u.Roles = roles
	}
	return u
}

func (e *ClaimsExtractor) getStringValue(claims map[string]any, path string) string {
	if s, ok := e.getValue(claims, path).(string); ok {
		return s
	}
	return ""
}

func (e *ClaimsExtractor) getStringSlice(claims map[string]any, path string) []string {
	switch arr := e.getValue(claims, path).(type) {
	case []any:
		result := make([]string, 0, len(arr))
		for _, v := range arr {
			if s, ok := v.(string); ok {
				result = append(result, s)
			}
		}
		return result
	case []string:
		return arr
	}
	return nil
}

// getValue gets a value at a dot-separated path.
func (*ClaimsExtractor) getValue(claims map[string]any, path string) any {
	if path == "" {
		return nil
	}

	var current any = claims
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[part]
	}
	return current
}

func filterByPrefix(items []string, prefix string) []string {
	result := make([]string, 0, len(items))
	for _, item := range items {
		if strings.HasPrefix(item, prefix) {
			result = append(result, item)
		}
	}
	return result
}
