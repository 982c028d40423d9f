package domain

import "strings"

// Role is a participant role. The zero value is not a valid role.
type Role string

const (
	RoleClient     Role = "client"
	RoleInfluencer Role = "influencer"
	RoleBeautyPro  Role = "beautypro"
)

// Roles lists every valid role in display order.
var Roles = []Role{RoleClient, RoleInfluencer, RoleBeautyPro}

// ParseRole normalizes a role string from any system boundary.
// "pro", "beauty_pro" and "beauty-pro" all map to RoleBeautyPro.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "client":
		return RoleClient, nil
	case "influencer":
		return RoleInfluencer, nil
	case "beautypro", "beauty_pro", "beauty-pro", "pro":
		return RoleBeautyPro, nil
	}
	return "", ErrInvalidRole
}

func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleInfluencer, RoleBeautyPro:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}
