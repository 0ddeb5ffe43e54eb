package patient

import (
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

// nedDocument is the reference patient used across the package tests.
func nedDocument() Document {
	return Document{
		"resourceType": "Patient",
		"active":       true,
		"birthDate":    "1960-07-04",
		"gender":       "male",
		"name": []interface{}{
			map[string]interface{}{
				"use":    "official",
				"family": "Flanders",
				"given":  []interface{}{"Nedward", "Ned"},
				"prefix": []interface{}{"Mr"},
			},
		},
		"telecom": []interface{}{
			map[string]interface{}{"system": "phone", "value": "5555551112", "use": "home"},
			map[string]interface{}{"system": "email", "value": "ned.flanders@email.com"},
		},
		"address": []interface{}{
			map[string]interface{}{
				"use":        "home",
				"type":       "both",
				"text":       "744 Evergreen Terrace, Springfield, IL 90210",
				"line":       []interface{}{"744 Evergreen Terrace"},
				"city":       "Springfield",
				"state":      "IL",
				"postalCode": "90210",
				"country":    "USA",
			},
		},
	}
}

// daisyDocument is the minimal end-to-end document.
func daisyDocument() Document {
	return Document{
		"active":    true,
		"birthDate": "2010-10-09",
		"gender":    "female",
		"name": []interface{}{
			map[string]interface{}{"family": "Dog", "given": []interface{}{"Daisy"}},
		},
		"telecom": []interface{}{
			map[string]interface{}{"system": "phone", "value": "5107939896", "use": "home"},
		},
		"address": []interface{}{
			map[string]interface{}{
				"use":        "home",
				"line":       []interface{}{"2000 Highland"},
				"city":       "Hayward",
				"state":      "CA",
				"postalCode": "98765",
				"country":    "USA",
			},
		},
	}
}

// fakeDocument produces a random valid patient document.
func fakeDocument(f *gofakeit.Faker) Document {
	birth := f.DateRange(
		time.Date(1930, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC),
	)
	return Document{
		"resourceType": "Patient",
		"active":       f.Bool(),
		"birthDate":    birth.Format(dateLayout),
		"gender":       f.RandomString([]string{"male", "female", "unknown"}),
		"name": []interface{}{
			map[string]interface{}{
				"use":    "official",
				"family": f.LastName(),
				"given":  []interface{}{f.FirstName(), f.FirstName()},
				"prefix": []interface{}{f.NamePrefix()},
			},
		},
		"telecom": []interface{}{
			map[string]interface{}{"system": "phone", "value": f.Numerify("##########"), "use": "home"},
			map[string]interface{}{"system": "phone", "value": f.Numerify("##########"), "use": "cell"},
			map[string]interface{}{"system": "email", "value": f.Numerify("patient####@example.com")},
		},
		"address": []interface{}{
			map[string]interface{}{
				"use":        "home",
				"line":       []interface{}{f.Street()},
				"city":       f.City(),
				"state":      f.StateAbr(),
				"postalCode": f.Numerify("#####"),
				"country":    "USA",
			},
		},
	}
}

// without returns a shallow copy of m with key removed.
func without(m map[string]interface{}, key string) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if k != key {
			out[k] = v
		}
	}
	return out
}

// firstEntry returns the first element of a list field as a map.
func firstEntry(doc Document, key string) map[string]interface{} {
	return doc[key].([]interface{})[0].(map[string]interface{})
}
