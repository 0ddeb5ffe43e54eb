package patient

import (
	"bytes"
	"time"

	"github.com/goccy/go-json"
)

const dateLayout = "2006-01-02"

// Document is a loosely typed patient document as decoded from JSON.
type Document map[string]interface{}

// Options tunes the deserializer.
type Options struct {
	// RequireNamePrefix rejects names that carry no "prefix" key.
	RequireNamePrefix bool
}

// DecodeDocument parses a request body into a Document. Anything other than
// a JSON object is rejected as bad data.
func DecodeDocument(body []byte) (Document, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, invalid(msgBadData)
	}
	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil || doc == nil {
		return nil, invalid(msgBadData)
	}
	return doc, nil
}

// Deserialize validates doc and merges it into p, appending any names and
// addresses to the ones p already holds. A nil p starts a new profile. On
// failure p is left untouched and a *ValidationError is returned.
func Deserialize(doc Document, p *Profile, opts Options) (*Profile, error) {
	if doc == nil {
		return nil, invalid(msgBadData)
	}
	if p == nil {
		p = &Profile{}
	}
	w := p.clone()
	if err := w.decode(doc, opts); err != nil {
		return nil, err
	}
	*p = *w
	return p, nil
}

func (p *Profile) decode(doc Document, opts Options) error {
	rt, err := optionalString(doc, "resourceType")
	if err != nil {
		return err
	}
	p.ResourceType = rt

	raw, ok := doc["active"]
	if !ok || raw == nil {
		return missing("active")
	}
	active, isBool := raw.(bool)
	if !isBool {
		return invalid(msgBadData)
	}
	p.Active = active

	birth, err := requiredString(doc, "birthDate")
	if err != nil {
		return err
	}
	dob, err := time.Parse(dateLayout, birth)
	if err != nil {
		return invalid(msgBadDate)
	}
	p.BirthDate = dob

	g, err := requiredString(doc, "gender")
	if err != nil {
		return err
	}
	gender, ok := ParseGender(g)
	if !ok {
		return invalid(msgBadGender)
	}
	p.Gender = gender

	names, err := requiredList(doc, "name")
	if err != nil {
		return err
	}
	for _, v := range names {
		m, err := asMap(v)
		if err != nil {
			return err
		}
		n := &Name{ProfileID: p.ID}
		if err := n.decode(m, opts); err != nil {
			return err
		}
		p.Names = append(p.Names, n)
	}

	telecom, err := requiredList(doc, "telecom")
	if err != nil {
		return err
	}
	for _, v := range telecom {
		cp, ok, err := contactPointFrom(v)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := p.applyContactPoint(cp); err != nil {
			return err
		}
	}

	addrs, err := requiredList(doc, "address")
	if err != nil {
		return err
	}
	for _, v := range addrs {
		m, err := asMap(v)
		if err != nil {
			return err
		}
		a := &Address{ProfileID: p.ID}
		if err := a.decode(m); err != nil {
			return err
		}
		p.Addresses = append(p.Addresses, a)
	}
	return nil
}

// DeserializeName builds a Name from a name document.
func DeserializeName(doc Document, opts Options) (*Name, error) {
	if doc == nil {
		return nil, invalid(msgBadData)
	}
	n := &Name{}
	if err := n.decode(doc, opts); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Name) decode(m map[string]interface{}, opts Options) error {
	use, err := optionalString(m, "use")
	if err != nil {
		return err
	}
	n.Use = use

	family, err := requiredString(m, "family")
	if err != nil {
		return err
	}
	if family == "" {
		return missing("family")
	}
	n.Family = family

	given, err := requiredStrings(m, "given")
	if err != nil {
		return err
	}
	if len(given) == 0 || given[0] == "" {
		return missing("given")
	}
	n.Given1 = given[0]
	n.Given2 = nil
	if len(given) > 1 {
		n.Given2 = strPtr(given[1])
	}

	n.Prefix1, n.Prefix2 = nil, nil
	if raw, ok := m["prefix"]; !ok || raw == nil {
		if opts.RequireNamePrefix {
			return missing("prefix")
		}
		return nil
	}
	prefix, err := requiredStrings(m, "prefix")
	if err != nil {
		return err
	}
	if len(prefix) > 0 {
		n.Prefix1 = strPtr(prefix[0])
	}
	if len(prefix) > 1 {
		n.Prefix2 = strPtr(prefix[1])
	}
	return nil
}

// DeserializeAddress builds an Address from an address document.
func DeserializeAddress(doc Document) (*Address, error) {
	if doc == nil {
		return nil, invalid(msgBadData)
	}
	a := &Address{}
	if err := a.decode(doc); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Address) decode(m map[string]interface{}) error {
	var err error
	if a.Use, err = requiredString(m, "use"); err != nil {
		return err
	}
	if a.Type, err = optionalString(m, "type"); err != nil {
		return err
	}
	if a.Text, err = optionalString(m, "text"); err != nil {
		return err
	}
	if a.City, err = requiredString(m, "city"); err != nil {
		return err
	}
	if a.State, err = requiredString(m, "state"); err != nil {
		return err
	}
	if a.Country, err = requiredString(m, "country"); err != nil {
		return err
	}
	if a.PostalCode, err = requiredString(m, "postalCode"); err != nil {
		return err
	}
	if !ValidateZip(a.PostalCode) {
		return invalid(msgBadZip)
	}

	lines, err := requiredStrings(m, "line")
	if err != nil {
		return err
	}
	if len(lines) == 0 || lines[0] == "" {
		return missing("line")
	}
	a.Line1 = lines[0]
	a.Line2 = nil
	if len(lines) > 1 {
		a.Line2 = strPtr(lines[1])
	}
	return nil
}

// ProfileDocument is the outbound projection of a Profile. It never carries a
// telecom array, so it cannot be fed back to Deserialize as is.
type ProfileDocument struct {
	ID           *int64            `json:"id"`
	ResourceType *string           `json:"resourceType"`
	Active       bool              `json:"active"`
	BirthDate    string            `json:"birthDate"`
	Gender       string            `json:"gender"`
	PhoneHome    *string           `json:"phone_home"`
	PhoneOffice  *string           `json:"phone_office"`
	PhoneCell    *string           `json:"phone_cell"`
	Email        *string           `json:"email"`
	Name         []NameDocument    `json:"name"`
	Address      []AddressDocument `json:"address"`
}

// NameDocument is the outbound form of a Name, tagged with its owner id.
type NameDocument struct {
	ID     *int64   `json:"id"`
	PatID  *int64   `json:"pat_id"`
	Use    *string  `json:"use"`
	Family string   `json:"family"`
	Given  []string `json:"given"`
	Prefix []string `json:"prefix"`
}

// AddressDocument is the outbound form of an Address.
type AddressDocument struct {
	ID         *int64   `json:"id"`
	PatID      *int64   `json:"pat_id"`
	Use        string   `json:"use"`
	Type       *string  `json:"type"`
	Text       *string  `json:"text"`
	Line       []string `json:"line"`
	City       string   `json:"city"`
	State      string   `json:"state"`
	PostalCode string   `json:"postalCode"`
	Country    string   `json:"country"`
}

// Serialize projects p into its outbound document.
func Serialize(p *Profile) ProfileDocument {
	doc := ProfileDocument{
		ID:           idRef(p.ID),
		ResourceType: p.ResourceType,
		Active:       p.Active,
		BirthDate:    p.BirthDate.Format(dateLayout),
		Gender:       p.Gender.String(),
		PhoneHome:    p.PhoneHome,
		PhoneOffice:  p.PhoneOffice,
		PhoneCell:    p.PhoneCell,
		Email:        p.Email,
		Name:         make([]NameDocument, 0, len(p.Names)),
		Address:      make([]AddressDocument, 0, len(p.Addresses)),
	}
	for _, n := range p.Names {
		doc.Name = append(doc.Name, SerializeName(n))
	}
	for _, a := range p.Addresses {
		doc.Address = append(doc.Address, SerializeAddress(a))
	}
	return doc
}

// SerializeName projects n into its outbound document.
func SerializeName(n *Name) NameDocument {
	doc := NameDocument{
		ID:     idRef(n.ID),
		PatID:  idRef(n.ProfileID),
		Use:    n.Use,
		Family: n.Family,
		Given:  []string{n.Given1},
		Prefix: []string{},
	}
	if n.Given2 != nil {
		doc.Given = append(doc.Given, *n.Given2)
	}
	if n.Prefix1 != nil {
		doc.Prefix = append(doc.Prefix, *n.Prefix1)
	}
	if n.Prefix2 != nil {
		doc.Prefix = append(doc.Prefix, *n.Prefix2)
	}
	return doc
}

// SerializeAddress projects a into its outbound document.
func SerializeAddress(a *Address) AddressDocument {
	doc := AddressDocument{
		ID:         idRef(a.ID),
		PatID:      idRef(a.ProfileID),
		Use:        a.Use,
		Type:       a.Type,
		Text:       a.Text,
		Line:       []string{a.Line1},
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
	if a.Line2 != nil {
		doc.Line = append(doc.Line, *a.Line2)
	}
	return doc
}

func idRef(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

// -- document field access --

func asMap(v interface{}) (map[string]interface{}, error) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, nil
	case Document:
		return m, nil
	}
	return nil, invalid(msgBadData)
}

func optionalString(m map[string]interface{}, key string) (*string, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return nil, nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, invalid(msgBadData)
	}
	return &s, nil
}

func requiredString(m map[string]interface{}, key string) (string, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return "", missing(key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", invalid(msgBadData)
	}
	return s, nil
}

func requiredList(m map[string]interface{}, key string) ([]interface{}, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return nil, missing(key)
	}
	switch list := raw.(type) {
	case []interface{}:
		return list, nil
	case []string:
		out := make([]interface{}, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, nil
	case []map[string]interface{}:
		out := make([]interface{}, len(list))
		for i, e := range list {
			out[i] = e
		}
		return out, nil
	case []Document:
		out := make([]interface{}, len(list))
		for i, e := range list {
			out[i] = e
		}
		return out, nil
	}
	return nil, invalid(msgBadData)
}

func requiredStrings(m map[string]interface{}, key string) ([]string, error) {
	list, err := requiredList(m, key)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		s, ok := v.(string)
		if !ok {
			return nil, invalid(msgBadData)
		}
		out = append(out, s)
	}
	return out, nil
}
