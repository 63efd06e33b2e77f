package profile

import (
	"encoding/json"

	"google.golang.org/grpc/codes"

	"github.com/carebridge/portal/errors"
)

// Role determines which areas of the portal a user can see. The set is
// closed; code switching on Role should handle every constant.
type Role int

const (
	// RolePatient is the default role assigned at first sign-in.
	RolePatient Role = iota + 1
	// RoleDoctor grants access to patient management and analytics.
	RoleDoctor
	// RoleAdmin grants access to everything.
	RoleAdmin
)

// The role string was not one of patient, doctor, or admin.
var ErrUnknownRole = errors.NewC("profile: unknown role", codes.InvalidArgument)

// ParseRole maps the stored string form onto a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "patient":
		return RolePatient, nil
	case "doctor":
		return RoleDoctor, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return 0, errors.Mark(ErrUnknownRole, 0).Append(s)
	}
}

// Valid reports whether the role is one of the defined constants.
func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	switch r {
	case RolePatient:
		return "patient"
	case RoleDoctor:
		return "doctor"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// MarshalJSON stores roles in their string form so records remain readable
// and compatible with the web client.
func (r Role) MarshalJSON() ([]byte, error) {
	if !r.Valid() {
		return nil, errors.Mark(ErrUnknownRole, 0).Append(r.String())
	}
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
