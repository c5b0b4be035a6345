package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Role names a supply-chain participant.  The backend sends these values
// verbatim (e.g. "Farmer"), so they are compared case-sensitively after
// trimming.
type Role string

const (
	RoleFarmer    Role = "Farmer"
	RoleProducer  Role = "Producer"
	RoleLogistics Role = "Logistics"
	RoleRetailer  Role = "Retailer"
)

// UnknownRole is shown for history entries whose author could not be resolved.
const UnknownRole = "Unknown Role"

// Roles lists every recognized role in the order the signup form offers them.
var Roles = []Role{RoleFarmer, RoleProducer, RoleLogistics, RoleRetailer}

// Valid reports whether r is one of the recognized roles.
func (r Role) Valid() bool {
	switch r {
	case RoleFarmer, RoleProducer, RoleLogistics, RoleRetailer:
		return true
	}
	return false
}

// ParseRole normalizes user input ("farmer", " Retailer ") into a Role.
// The zero Role and false are returned for anything unrecognized.
func ParseRole(s string) (Role, bool) {
	s = strings.TrimSpace(s)
	for _, r := range Roles {
		if strings.EqualFold(string(r), s) {
			return r, true
		}
	}
	return "", false
}

// ID is a backend identifier.  Depending on the endpoint the backend encodes
// ids as JSON numbers or strings; both decode into the same textual form so
// that ids from different payloads compare equal.
type ID string

// UnmarshalJSON accepts a JSON string, number or null.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*id = ID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// User is the authenticated identity held by the session store.
type User struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// IsFarmer reports whether the user originates batches.
func (u User) IsFarmer() bool { return u.Role == RoleFarmer }

// NewUser is the signup payload sent to POST /users.
type NewUser struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}
