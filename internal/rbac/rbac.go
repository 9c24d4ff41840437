// Package rbac is the static role policy gating every invoice operation.
package rbac

import (
	"strings"

	"invoiceflow/internal/apierror"
)

// Role is a caller role resolved by the identity provider.
type Role string

const (
	Admin   Role = "Admin"
	Manager Role = "Manager"
	Driver  Role = "Driver"
)

// ParseRole trims surrounding space and matches role names exactly, so
// "manager" is not Manager. Unknown names are returned verbatim and are
// denied by every policy.
func ParseRole(s string) Role {
	return Role(strings.TrimSpace(s))
}

// ScopedToOwn reports whether reads are restricted to records the caller created.
func (r Role) ScopedToOwn() bool { return r == Driver }

// Operation names a guarded action.
type Operation string

const (
	OpList    Operation = "invoice:list"
	OpView    Operation = "invoice:view"
	OpPDF     Operation = "invoice:pdf"
	OpCreate  Operation = "invoice:create"
	OpUpdate  Operation = "invoice:update"
	OpItems   Operation = "invoice:items"
	OpSubmit  Operation = "invoice:submit"
	OpApprove Operation = "invoice:approve"
	OpReject  Operation = "invoice:reject"
	OpReopen  Operation = "invoice:reopen"
	OpAudit   Operation = "invoice:audit"
	OpReport  Operation = "report:render"
)

var (
	readers = []Role{Admin, Manager, Driver}
	writers = []Role{Manager, Admin}
)

var policy = map[Operation][]Role{
	OpList:    readers,
	OpView:    readers,
	OpPDF:     readers,
	OpCreate:  writers,
	OpUpdate:  writers,
	OpItems:   writers,
	OpSubmit:  writers,
	OpApprove: writers,
	OpReject:  writers,
	OpReopen:  writers,
	OpAudit:   {Admin},
	OpReport:  readers,
}

// Required returns the roles allowed to perform op, in policy order.
func Required(op Operation) []Role {
	return policy[op]
}

// Allowed is the pure predicate. Unknown operations are denied.
func Allowed(role Role, op Operation) bool {
	for _, r := range policy[op] {
		if r == role {
			return true
		}
	}
	return false
}

// Check returns an ACCESS_DENIED error naming the required roles and the
// caller's role when the role may not perform op.
func Check(role Role, op Operation) error {
	if Allowed(role, op) {
		return nil
	}
	required := make([]string, 0, len(policy[op]))
	for _, r := range policy[op] {
		required = append(required, string(r))
	}
	return apierror.AccessDenied(required, string(role))
}
