package identity

import "github.com/google/uuid"

const (
	RoleOwner    = "Owner"
	RoleCustomer = "Customer"
)

// Actor is the caller as seen by authorization checks. The zero value is an
// anonymous visitor.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

func (a Actor) Authenticated() bool { return a.UserID != uuid.Nil }

// CanCheckout is the single purchase policy: only an authenticated Customer
// may place orders. Owners never can.
func CanCheckout(a Actor) bool {
	return a.Authenticated() && a.Role == RoleCustomer
}

func CanManageInventory(a Actor) bool {
	return a.Authenticated() && a.Role == RoleOwner
}

// CanShop covers cart usage, which anonymous visitors may do too.
func CanShop(a Actor) bool {
	return a.Role != RoleOwner
}

func KnownRole(role string) bool {
	return role == RoleOwner || role == RoleCustomer
}
