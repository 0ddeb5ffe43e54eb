package patient

import "context"

// ProfileRepository persists the Profile aggregate. Writes cover the profile
// row and its owned names and addresses as a single transaction.
type ProfileRepository interface {
	Create(ctx context.Context, p *Profile) error
	Save(ctx context.Context, p *Profile) error
	Delete(ctx context.Context, id int64) error
	Find(ctx context.Context, id int64) (*Profile, error)
	All(ctx context.Context) ([]*Profile, error)
	Search(ctx context.Context, c Criteria) ([]*Profile, error)
	Ping(ctx context.Context) error
}

// Criteria narrows Search. Every non-nil field must match. Family and Given
// must match on the same name row.
type Criteria struct {
	PhoneHome  *string
	Email      *string
	Active     *bool
	Gender     *Gender
	Family     *string
	Given      *string
	PostalCode *string
}

// IsZero reports whether no predicate is set.
func (c Criteria) IsZero() bool {
	return c == Criteria{}
}
