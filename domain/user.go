package domain

// Staff roles.
const (
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleCashier    = "cashier"
	RolePharmacist = "pharmacist"
)

// ValidRole reports whether r is a known staff role.
func ValidRole(r string) bool {
	switch r {
	case RoleAdmin, RoleManager, RoleCashier, RolePharmacist:
		return true
	}
	return false
}

type User struct {
	ID        int64  `json:"id" db:"id"`
	Username  string `json:"username" db:"username"`
	Email     string `json:"email" db:"email"`
	Password  string `json:"password,omitempty" db:"password"`
	FullName  string `json:"full_name,omitempty" db:"full_name"`
	Role      string `json:"role" db:"role"`
	Phone     string `json:"phone,omitempty" db:"phone"`
	CreatedAt string `json:"created_at,omitempty" db:"created_at"`
}

// DisplayName is what receipts show for the serving cashier.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}
