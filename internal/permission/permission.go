// Package permission defines the seven-level access lattice shared by the
// server-side resolver and the client SDK. The order is total and the
// predicates are inclusive thresholds, so any capability granted at one level
// is granted at every higher level. Administrator is the one exception: it is
// an equality check, because it gates settings and access management rather
// than event editing.
package permission

import "fmt"

// Permission is a closed enum. The zero value is NoAccess.
type Permission string

const (
	NoAccess          Permission = "no_access"
	ReadOnlyNoDetails Permission = "read_only_no_details"
	ReadOnly          Permission = "read_only"
	AddOnly           Permission = "add_only"
	ModifyOwn         Permission = "modify_own"
	Modify            Permission = "modify"
	Administrator     Permission = "administrator"
)

// ranks is the compile-time order table. Weakest first.
var ranks = map[Permission]int{
	NoAccess:          0,
	ReadOnlyNoDetails: 1,
	ReadOnly:          2,
	AddOnly:           3,
	ModifyOwn:         4,
	Modify:            5,
	Administrator:     6,
}

// All lists every permission in ascending rank order.
var All = []Permission{
	NoAccess,
	ReadOnlyNoDetails,
	ReadOnly,
	AddOnly,
	ModifyOwn,
	Modify,
	Administrator,
}

// Rank returns the position of p in the total order. An unknown value is a
// programmer error and panics rather than silently ranking as NoAccess.
func Rank(p Permission) int {
	r, ok := ranks[p]
	if !ok {
		panic(fmt.Sprintf("permission: unknown value %q", string(p)))
	}
	return r
}

// Valid reports whether p is one of the seven defined values.
func Valid(p Permission) bool {
	_, ok := ranks[p]
	return ok
}

// Parse converts a wire string into a Permission or returns an error.
func Parse(s string) (Permission, error) {
	p := Permission(s)
	if !Valid(p) {
		return NoAccess, fmt.Errorf("permission: unknown value %q", s)
	}
	return p, nil
}

// Max returns the strongest permission among perms, or NoAccess for an empty
// set. Grant resolution is a max-reduction, so discovery order never matters.
func Max(perms ...Permission) Permission {
	best := NoAccess
	for _, p := range perms {
		if Rank(p) > Rank(best) {
			best = p
		}
	}
	return best
}

// CanReadLimited reports whether p can see that events exist (busy view).
func CanReadLimited(p Permission) bool { return Rank(p) >= Rank(ReadOnlyNoDetails) }

// CanRead reports whether p can see full event details.
func CanRead(p Permission) bool { return Rank(p) >= Rank(ReadOnly) }

// CanAdd reports whether p can create events.
func CanAdd(p Permission) bool { return Rank(p) >= Rank(AddOnly) }

// CanModifyOwn reports whether p can edit events it created.
func CanModifyOwn(p Permission) bool { return Rank(p) >= Rank(ModifyOwn) }

// CanModify reports whether p can edit anyone's events.
func CanModify(p Permission) bool { return Rank(p) >= Rank(Modify) }

// IsAdmin reports whether p may manage calendar settings, sharing and groups.
// Deliberately an equality check, not a threshold.
func IsAdmin(p Permission) bool { return p == Administrator }
