package postgres

import (
	"fmt"
	"strings"

	"github.com/hrygo/familycal/store"
)

func placeholder(n int) string {
	return "$" + fmt.Sprint(n)
}

func placeholders(n int) string {
	list := []string{}
	for i := 0; i < n; i++ {
		list = append(list, placeholder(i+1))
	}
	return strings.Join(list, ", ")
}

// scopeCondition appends the owner filter for an event query.
func scopeCondition(scope store.OwnerScope, where []string, args []any) ([]string, []any) {
	if scope.IsFamily() {
		return append(where, "event.family_id = "+placeholder(len(args)+1)), append(args, *scope.FamilyID)
	}
	return append(where, "event.creator_id = "+placeholder(len(args)+1), "event.family_id IS NULL"), append(args, scope.UserID)
}
