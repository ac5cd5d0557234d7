package user

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-console/core"
)

// Roles, as sent on the wire.
const (
	RoleSuperAdmin = "SUPER_ADMIN"
	RoleAdmin      = "ADMIN"
	RoleTeacher    = "TEACHER"
	RoleStudent    = "STUDENT"
)

// Approval statuses
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

var (
	AdminRoles = []string{RoleSuperAdmin, RoleAdmin}
	AllRoles   = []string{RoleSuperAdmin, RoleAdmin, RoleTeacher, RoleStudent}

	rolePriorities = map[string]int{
		// Admins: 30 - 21
		RoleSuperAdmin: 30,
		RoleAdmin:      21,

		// Teachers: 20 - 11
		RoleTeacher: 11,

		// Students: 10 - 1
		RoleStudent: 1,
	}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Admin", Value: RoleAdmin},
		{Name: "Super Admin", Value: RoleSuperAdmin},
	}
)

// IsKnownRole reports whether role is one of the four roles this client understands.
func IsKnownRole(role string) bool {
	_, ok := rolePriorities[role]
	return ok
}

// IsAdminRole reports whether role may manage other accounts.
func IsAdminRole(role string) bool {
	for _, r := range AdminRoles {
		if r == role {
			return true
		}
	}
	return false
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// User mirrors the remote API's user record. Role is kept as a plain string:
// unknown values coming from newer servers are accepted as-is.
type User struct {
	ID                    int        `json:"id"`
	Username              string     `json:"username"`
	Email                 string     `json:"email,omitempty"`
	PhoneNumber           string     `json:"phone_number,omitempty"`
	Name                  string     `json:"name"`
	FatherName            string     `json:"father_name,omitempty"`
	Gender                string     `json:"gender,omitempty"`
	GenderDisplay         string     `json:"gender_display,omitempty"`
	Role                  string     `json:"role"`
	RoleDisplay           string     `json:"role_display,omitempty"`
	IsActive              bool       `json:"is_active"`
	IsApproved            bool       `json:"is_approved"`
	ApprovalStatus        string     `json:"approval_status,omitempty"`
	ApprovalStatusDisplay string     `json:"approval_status_display,omitempty"`
	ApprovedBy            *int       `json:"approved_by,omitempty"`
	ApprovedAt            *time.Time `json:"approved_at,omitempty"`
	RejectionReason       string     `json:"rejection_reason,omitempty"`
	ProfileImage          string     `json:"profile_image,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

func (u *User) IsSuperAdmin() bool { return u.Role == RoleSuperAdmin }
func (u *User) IsAdmin() bool      { return u.Role == RoleAdmin }
func (u *User) IsTeacher() bool    { return u.Role == RoleTeacher }
func (u *User) IsStudent() bool    { return u.Role == RoleStudent }

// DisplayRole prefers the server provided label.
func (u *User) DisplayRole() string {
	if u.RoleDisplay != "" {
		return u.RoleDisplay
	}
	for _, r := range Roles {
		if r.Value == u.Role {
			return r.Name
		}
	}
	return u.Role
}

// Credentials contains the information needed to log in.
type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (c *Credentials) Validate(validate *validator.Validate) error {
	c.Username = core.CleanString(c.Username, true /* lower */)
	return validate.Struct(c)
}

// NewStudent contains information needed to self-register a student account (pending approval).
type NewStudent struct {
	Username        string `json:"username" validate:"required,min=3,alphanum_"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	Name            string `json:"name" validate:"required"`
	FatherName      string `json:"father_name,omitempty"`
	Gender          string `json:"gender" validate:"required,oneof=male female"`
	Email           string `json:"email,omitempty" validate:"omitempty,email"`
	PhoneNumber     string `json:"phone_number,omitempty"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.FatherName = core.CleanString(ns.FatherName)
	ns.Username = core.CleanString(ns.Username, true /* lower */)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Gender = core.CleanString(ns.Gender, true /* lower */)
	return validate.Struct(ns)
}

// UpdateProfile defines what information the logged in user may change on their own record.
type UpdateProfile struct {
	Name        string `json:"name,omitempty"`
	FatherName  string `json:"father_name,omitempty"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	up.Name = core.CleanString(up.Name)
	up.FatherName = core.CleanString(up.FatherName)
	up.Email = core.CleanString(up.Email, true /* lower */)
	up.PhoneNumber = core.CleanString(up.PhoneNumber)
	return validate.Struct(up)
}

type ChangePassword struct {
	OldPassword        string `json:"old_password" validate:"required"`
	NewPassword        string `json:"new_password" validate:"required"`
	NewPasswordConfirm string `json:"new_password_confirm" validate:"required,eqfield=NewPassword"`
}

func (cp ChangePassword) Validate(validate *validator.Validate) error { return validate.Struct(cp) }
