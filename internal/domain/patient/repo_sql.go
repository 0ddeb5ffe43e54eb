package patient

import (
	"strconv"
	"strings"
)

// Query text shared by the SQL stores. Placeholders are written as "?" and
// rewritten by rebind for drivers that number them.

const profileCols = `p.id, p.resource_type, p.active, p.birth_date, p.gender,
	p.phone_home, p.phone_office, p.phone_cell, p.email`

const nameCols = `id, profile_id, name_use, family, given_1, given_2, prefix_1, prefix_2`

const addressCols = `id, profile_id, address_use, address_type, address_text,
	line_1, line_2, city, state, postal_code, country`

const (
	insertProfileSQL = `INSERT INTO patient_profile (
		resource_type, active, birth_date, gender, phone_home, phone_office, phone_cell, email
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	updateProfileSQL = `UPDATE patient_profile SET
		resource_type = ?, active = ?, birth_date = ?, gender = ?,
		phone_home = ?, phone_office = ?, phone_cell = ?, email = ?
	WHERE id = ?`

	deleteProfileSQL = `DELETE FROM patient_profile WHERE id = ?`

	insertNameSQL = `INSERT INTO patient_name (
		profile_id, name_use, family, given_1, given_2, prefix_1, prefix_2
	) VALUES (?, ?, ?, ?, ?, ?, ?)`

	updateNameSQL = `UPDATE patient_name SET
		name_use = ?, family = ?, given_1 = ?, given_2 = ?, prefix_1 = ?, prefix_2 = ?
	WHERE id = ? AND profile_id = ?`

	insertAddressSQL = `INSERT INTO patient_address (
		profile_id, address_use, address_type, address_text, line_1, line_2, city, state, postal_code, country
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	updateAddressSQL = `UPDATE patient_address SET
		address_use = ?, address_type = ?, address_text = ?, line_1 = ?, line_2 = ?,
		city = ?, state = ?, postal_code = ?, country = ?
	WHERE id = ? AND profile_id = ?`
)

func nameArgs(n *Name) []interface{} {
	return []interface{}{n.Use, n.Family, n.Given1, n.Given2, n.Prefix1, n.Prefix2}
}

func addressArgs(a *Address) []interface{} {
	return []interface{}{a.Use, a.Type, a.Text, a.Line1, a.Line2, a.City, a.State, a.PostalCode, a.Country}
}

// where renders the criteria as a predicate over patient_profile aliased p.
func (c Criteria) where() (string, []interface{}) {
	var (
		preds []string
		args  []interface{}
	)
	if c.PhoneHome != nil {
		preds = append(preds, "p.phone_home = ?")
		args = append(args, *c.PhoneHome)
	}
	if c.Email != nil {
		preds = append(preds, "p.email = ?")
		args = append(args, *c.Email)
	}
	if c.Active != nil {
		preds = append(preds, "p.active = ?")
		args = append(args, *c.Active)
	}
	if c.Gender != nil {
		preds = append(preds, "p.gender = ?")
		args = append(args, c.Gender.String())
	}
	if c.Family != nil || c.Given != nil {
		sub := "EXISTS (SELECT 1 FROM patient_name n WHERE n.profile_id = p.id"
		if c.Family != nil {
			sub += " AND n.family = ?"
			args = append(args, *c.Family)
		}
		if c.Given != nil {
			sub += " AND n.given_1 = ?"
			args = append(args, *c.Given)
		}
		preds = append(preds, sub+")")
	}
	if c.PostalCode != nil {
		preds = append(preds, "EXISTS (SELECT 1 FROM patient_address a WHERE a.profile_id = p.id AND a.postal_code = ?)")
		args = append(args, *c.PostalCode)
	}
	if len(preds) == 0 {
		return "1 = 1", nil
	}
	return strings.Join(preds, " AND "), args
}

// selectProfilesSQL returns the profile query and the two child queries
// scoped to the same predicate.
func selectProfilesSQL(pred string) (profiles, names, addresses string) {
	scope := `SELECT p.id FROM patient_profile p WHERE ` + pred
	profiles = `SELECT ` + profileCols + ` FROM patient_profile p WHERE ` + pred + ` ORDER BY p.id`
	names = `SELECT ` + nameCols + ` FROM patient_name WHERE profile_id IN (` + scope + `) ORDER BY profile_id, id`
	addresses = `SELECT ` + addressCols + ` FROM patient_address WHERE profile_id IN (` + scope + `) ORDER BY profile_id, id`
	return profiles, names, addresses
}

// deleteOrphansSQL removes the children of profileID whose ids are not kept.
func deleteOrphansSQL(table string, profileID int64, kept []int64) (string, []interface{}) {
	q := `DELETE FROM ` + table + ` WHERE profile_id = ?`
	args := []interface{}{profileID}
	if len(kept) > 0 {
		marks := make([]string, len(kept))
		for i, id := range kept {
			marks[i] = "?"
			args = append(args, id)
		}
		q += ` AND id NOT IN (` + strings.Join(marks, ", ") + `)`
	}
	return q, args
}

func keptNameIDs(p *Profile) []int64 {
	var ids []int64
	for _, n := range p.Names {
		if n.ID != 0 {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

func keptAddressIDs(p *Profile) []int64 {
	var ids []int64
	for _, a := range p.Addresses {
		if a.ID != 0 {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// rebind rewrites "?" placeholders as $1, $2, ... for PostgreSQL.
func rebind(q string) string {
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

// assemble attaches loaded children to their profiles, keeping store order.
func assemble(profiles []*Profile, names []*Name, addrs []*Address) {
	byID := make(map[int64]*Profile, len(profiles))
	for _, p := range profiles {
		p.Names = []*Name{}
		p.Addresses = []*Address{}
		byID[p.ID] = p
	}
	for _, n := range names {
		if p, ok := byID[n.ProfileID]; ok {
			p.Names = append(p.Names, n)
		}
	}
	for _, a := range addrs {
		if p, ok := byID[a.ProfileID]; ok {
			p.Addresses = append(p.Addresses, a)
		}
	}
}

func parseStoredGender(s string) Gender {
	if g, ok := ParseGender(s); ok {
		return g
	}
	return GenderUnknown
}
