package booking

const (
	RoleAdmin    = "admin"
	RoleStaff    = "staff"
	RoleCustomer = "customer"
)

// RequestContext carries the caller's identity into every operation. An empty
// Role is an anonymous guest.
type RequestContext struct {
	RequestID  string
	ActorID    string
	Role       string
	StaffID    string
	CustomerID string
}

func (rc RequestContext) IsAdmin() bool {
	return rc.Role == RoleAdmin
}

// CanManage reports whether the caller may change appointments of staffID:
// admins always, staff only their own.
func (rc RequestContext) CanManage(staffID string) bool {
	if rc.IsAdmin() {
		return true
	}
	return rc.Role == RoleStaff && rc.StaffID != "" && rc.StaffID == staffID
}
