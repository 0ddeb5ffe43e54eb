package patient

// ContactPoint is one telecom entry of an inbound document. It only lives
// for the duration of a deserialization and is never stored.
type ContactPoint struct {
	System string
	Value  string
	Use    string
}

const (
	systemPhone = "phone"
	systemEmail = "email"

	usePhoneOffice = "office"
	usePhoneCell   = "cell"
)

// contactPointFrom reads a telecom entry. ok is false for entries whose
// system is missing or not a string, which carry nothing to classify. A use
// that is not a string counts as absent.
func contactPointFrom(v interface{}) (cp ContactPoint, ok bool, err error) {
	m, err := asMap(v)
	if err != nil {
		return cp, false, err
	}
	system, _ := m["system"].(string)
	if system == "" {
		return cp, false, nil
	}
	cp.System = system

	raw, present := m["value"]
	if !present {
		return cp, false, missing("value")
	}
	switch val := raw.(type) {
	case nil:
	case string:
		cp.Value = val
	default:
		return cp, false, invalid(msgBadData)
	}

	cp.Use, _ = m["use"].(string)
	return cp, true, nil
}

// applyContactPoint routes a contact point into the typed phone and email
// slots of p. Unknown systems are ignored.
func (p *Profile) applyContactPoint(cp ContactPoint) error {
	switch cp.System {
	case systemPhone:
		if !ValidatePhone(cp.Value) {
			return invalid(msgBadPhone)
		}
		phone := strPtr(cp.Value)
		switch cp.Use {
		case usePhoneOffice:
			p.PhoneOffice = phone
		case usePhoneCell:
			p.PhoneCell = phone
		default:
			// home, absent or unrecognised use
			p.PhoneHome = phone
		}
	case systemEmail:
		p.Email = nil
		if cp.Value == "" {
			return nil
		}
		email, err := ValidateEmail(cp.Value)
		if err != nil {
			return err
		}
		p.Email = &email
	}
	return nil
}
