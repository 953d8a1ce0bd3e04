package sqlite

import (
	"strings"

	"github.com/hrygo/familycal/store"
)

// placeholder returns a placeholder for SQLite (uses ?)
func placeholder(n int) string {
	return "?"
}

// placeholders returns n placeholders for SQLite
func placeholders(n int) string {
	list := []string{}
	for i := 0; i < n; i++ {
		list = append(list, placeholder(i+1))
	}
	return strings.Join(list, ", ")
}

// scopeCondition appends the owner filter for an event query.
// A family scope selects the shared set; a user scope selects personal events only.
func scopeCondition(scope store.OwnerScope, where []string, args []any) ([]string, []any) {
	if scope.IsFamily() {
		return append(where, "event.family_id = "+placeholder(len(args)+1)), append(args, *scope.FamilyID)
	}
	return append(where, "event.creator_id = "+placeholder(len(args)+1), "event.family_id IS NULL"), append(args, scope.UserID)
}
