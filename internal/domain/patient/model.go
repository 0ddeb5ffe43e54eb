package patient

import (
	"fmt"
	"time"
)

// Gender is the administrative gender of a patient.
type Gender int

const (
	GenderMale Gender = iota + 1
	GenderFemale
	GenderUnknown
)

var genderNames = map[Gender]string{
	GenderMale:    "male",
	GenderFemale:  "female",
	GenderUnknown: "unknown",
}

func (g Gender) String() string {
	if s, ok := genderNames[g]; ok {
		return s
	}
	return fmt.Sprintf("Gender(%d)", int(g))
}

// Valid reports whether g is one of the enumerated genders.
func (g Gender) Valid() bool {
	_, ok := genderNames[g]
	return ok
}

// ParseGender maps an enum literal name to a Gender. Matching is exact and
// case-sensitive.
func ParseGender(s string) (Gender, bool) {
	for g, name := range genderNames {
		if name == s {
			return g, true
		}
	}
	return 0, false
}

// Profile is the patient aggregate root. It owns its names and addresses.
type Profile struct {
	ID           int64     `db:"id" json:"id"`
	ResourceType *string   `db:"resource_type" json:"resource_type,omitempty"`
	Active       bool      `db:"active" json:"active"`
	BirthDate    time.Time `db:"birth_date" json:"birth_date"`
	Gender       Gender    `db:"gender" json:"gender"`
	PhoneHome    *string   `db:"phone_home" json:"phone_home,omitempty"`
	PhoneOffice  *string   `db:"phone_office" json:"phone_office,omitempty"`
	PhoneCell    *string   `db:"phone_cell" json:"phone_cell,omitempty"`
	Email        *string   `db:"email" json:"email,omitempty"`

	Names     []*Name    `json:"names"`
	Addresses []*Address `json:"addresses"`
}

// LatestName returns the most recently appended name, or nil.
func (p *Profile) LatestName() *Name {
	if len(p.Names) == 0 {
		return nil
	}
	return p.Names[len(p.Names)-1]
}

// NameByID returns the name with the given id owned by this profile.
func (p *Profile) NameByID(id int64) *Name {
	for _, n := range p.Names {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// AddressByID returns the address with the given id owned by this profile.
func (p *Profile) AddressByID(id int64) *Address {
	for _, a := range p.Addresses {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// RemoveName drops the name from the aggregate. It reports whether a name
// was removed.
func (p *Profile) RemoveName(id int64) bool {
	for i, n := range p.Names {
		if n.ID == id {
			p.Names = append(p.Names[:i], p.Names[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveAddress drops the address from the aggregate. It reports whether an
// address was removed.
func (p *Profile) RemoveAddress(id int64) bool {
	for i, a := range p.Addresses {
		if a.ID == id {
			p.Addresses = append(p.Addresses[:i], p.Addresses[i+1:]...)
			return true
		}
	}
	return false
}

// clone returns a copy of p whose child slices and child records can be
// mutated without touching p.
func (p *Profile) clone() *Profile {
	cp := *p
	cp.Names = make([]*Name, len(p.Names))
	for i, n := range p.Names {
		nc := *n
		cp.Names[i] = &nc
	}
	cp.Addresses = make([]*Address, len(p.Addresses))
	for i, a := range p.Addresses {
		ac := *a
		cp.Addresses[i] = &ac
	}
	return &cp
}

// Name maps to the patient_name table.
type Name struct {
	ID        int64   `db:"id" json:"id"`
	ProfileID int64   `db:"profile_id" json:"profile_id"`
	Use       *string `db:"name_use" json:"use,omitempty"`
	Family    string  `db:"family" json:"family"`
	Given1    string  `db:"given_1" json:"given_1"`
	Given2    *string `db:"given_2" json:"given_2,omitempty"`
	Prefix1   *string `db:"prefix_1" json:"prefix_1,omitempty"`
	Prefix2   *string `db:"prefix_2" json:"prefix_2,omitempty"`
}

// Address maps to the patient_address table.
type Address struct {
	ID         int64   `db:"id" json:"id"`
	ProfileID  int64   `db:"profile_id" json:"profile_id"`
	Use        string  `db:"address_use" json:"use"`
	Type       *string `db:"address_type" json:"type,omitempty"`
	Text       *string `db:"address_text" json:"text,omitempty"`
	Line1      string  `db:"line_1" json:"line_1"`
	Line2      *string `db:"line_2" json:"line_2,omitempty"`
	City       string  `db:"city" json:"city"`
	State      string  `db:"state" json:"state"`
	PostalCode string  `db:"postal_code" json:"postal_code"`
	Country    string  `db:"country" json:"country"`
}

func strPtr(s string) *string { return &s }
