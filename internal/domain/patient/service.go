package patient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/fhir/pats/internal/platform/metrics"
)

// Service runs patient operations against a ProfileRepository.
type Service struct {
	repo    ProfileRepository
	opts    Options
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewService creates a Service. m may be nil.
func NewService(repo ProfileRepository, opts Options, logger zerolog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		repo:    repo,
		opts:    opts,
		log:     logger.With().Str("component", "patient").Logger(),
		metrics: m,
	}
}

// Query carries the raw list filters from the request. Empty values are
// treated as absent.
type Query struct {
	PhoneHome  string
	Email      string
	Active     string
	Gender     string
	Family     string
	Given      string
	PostalCode string
}

// Criteria picks exactly one filter, in order: phone_home, email, active,
// gender, family and/or given, postalCode. No filter selects everything.
func (q Query) Criteria() (Criteria, error) {
	var c Criteria
	switch {
	case q.PhoneHome != "":
		c.PhoneHome = &q.PhoneHome
	case q.Email != "":
		c.Email = &q.Email
	case q.Active != "":
		active, err := strconv.ParseBool(q.Active)
		if err != nil {
			return c, invalid("Invalid active value")
		}
		c.Active = &active
	case q.Gender != "":
		g, ok := ParseGender(q.Gender)
		if !ok {
			return c, invalid(msgBadGender)
		}
		c.Gender = &g
	case q.Family != "" || q.Given != "":
		if q.Family != "" {
			c.Family = &q.Family
		}
		if q.Given != "" {
			c.Given = &q.Given
		}
	case q.PostalCode != "":
		c.PostalCode = &q.PostalCode
	}
	return c, nil
}

func (s *Service) rejected(err error) error {
	if IsValidation(err) {
		s.metrics.IncrementValidationFailures()
		s.log.Info().Err(err).Msg("document rejected")
	}
	return err
}

func (s *Service) find(ctx context.Context, id int64) (*Profile, error) {
	start := time.Now()
	p, err := s.repo.Find(ctx, id)
	s.metrics.ObserveStore("find", start, ignoreNotFound(err))
	if errors.Is(err, ErrNotFound) {
		return nil, notFound("Patient", id)
	}
	if err != nil {
		return nil, fmt.Errorf("find profile %d: %w", id, err)
	}
	return p, nil
}

func (s *Service) save(ctx context.Context, p *Profile) error {
	start := time.Now()
	err := s.repo.Save(ctx, p)
	s.metrics.ObserveStore("save", start, ignoreNotFound(err))
	if errors.Is(err, ErrNotFound) {
		return notFound("Patient", p.ID)
	}
	if err != nil {
		return fmt.Errorf("save profile %d: %w", p.ID, err)
	}
	return nil
}

// -- Profile --

func (s *Service) CreateProfile(ctx context.Context, doc Document) (*Profile, error) {
	p, err := Deserialize(doc, nil, s.opts)
	if err != nil {
		return nil, s.rejected(err)
	}
	start := time.Now()
	err = s.repo.Create(ctx, p)
	s.metrics.ObserveStore("create", start, err)
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	s.log.Info().Int64("profile_id", p.ID).Msg("profile created")
	return p, nil
}

// UpdateProfile merges doc into the stored profile. Names and addresses in
// doc are added to the ones already held.
func (s *Service) UpdateProfile(ctx context.Context, id int64, doc Document) (*Profile, error) {
	p, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := Deserialize(doc, p, s.opts); err != nil {
		return nil, s.rejected(err)
	}
	p.ID = id
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info().Int64("profile_id", id).Msg("profile updated")
	return p, nil
}

// DeleteProfile removes the profile and everything it owns. Deleting an
// unknown id succeeds.
func (s *Service) DeleteProfile(ctx context.Context, id int64) error {
	start := time.Now()
	err := s.repo.Delete(ctx, id)
	s.metrics.ObserveStore("delete", start, err)
	if err != nil {
		return fmt.Errorf("delete profile %d: %w", id, err)
	}
	s.log.Info().Int64("profile_id", id).Msg("profile deleted")
	return nil
}

func (s *Service) GetProfile(ctx context.Context, id int64) (*Profile, error) {
	return s.find(ctx, id)
}

func (s *Service) ListProfiles(ctx context.Context, q Query) ([]*Profile, error) {
	c, err := q.Criteria()
	if err != nil {
		return nil, s.rejected(err)
	}
	start := time.Now()
	var profiles []*Profile
	if c.IsZero() {
		profiles, err = s.repo.All(ctx)
		s.metrics.ObserveStore("all", start, err)
	} else {
		profiles, err = s.repo.Search(ctx, c)
		s.metrics.ObserveStore("search", start, err)
	}
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return profiles, nil
}

// -- Names --

func (s *Service) ListNames(ctx context.Context, id int64) ([]*Name, error) {
	p, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.Names, nil
}

func (s *Service) AddName(ctx context.Context, id int64, doc Document) (*Name, error) {
	p, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	n, err := DeserializeName(doc, s.opts)
	if err != nil {
		return nil, s.rejected(err)
	}
	p.Names = append(p.Names, n)
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info().Int64("profile_id", id).Int64("name_id", n.ID).Msg("name added")
	return n, nil
}

func (s *Service) GetName(ctx context.Context, id, nameID int64) (*Name, error) {
	p, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	n := p.NameByID(nameID)
	if n == nil {
		return nil, notFound("Name", nameID)
	}
	return n, nil
}

func (s *Service) UpdateName(ctx context.Context, id, nameID int64, doc Document) (*Name, error) {
	p, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.NameByID(nameID) == nil {
		return nil, notFound("Name", nameID)
	}
	return s.replaceName(ctx, p, nameID, doc)
}

// UpdateLatestName replaces the most recently added name.
func (s *Service) UpdateLatestName(ctx context.Context, id int64, doc Document) (*Name, error) {
	p, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	latest := p.LatestName()
	if latest == nil {
		return nil, &NotFoundError{Resource: "Latest name of patient", ID: strconv.FormatInt(id, 10)}
	}
	return s.replaceName(ctx, p, latest.ID, doc)
}

func (s *Service) replaceName(ctx context.Context, p *Profile, nameID int64, doc Document) (*Name, error) {
	n, err := DeserializeName(doc, s.opts)
	if err != nil {
		return nil, s.rejected(err)
	}
	n.ID, n.ProfileID = nameID, p.ID
	for i := range p.Names {
		if p.Names[i].ID == nameID {
			p.Names[i] = n
		}
	}
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info().Int64("profile_id", p.ID).Int64("name_id", nameID).Msg("name updated")
	return n, nil
}

// DeleteName removes a name from an existing profile. An unknown name id
// succeeds.
func (s *Service) DeleteName(ctx context.Context, id, nameID int64) error {
	p, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if !p.RemoveName(nameID) {
		return nil
	}
	if err := s.save(ctx, p); err != nil {
		return err
	}
	s.log.Info().Int64("profile_id", id).Int64("name_id", nameID).Msg("name deleted")
	return nil
}

// -- Addresses --

func (s *Service) ListAddresses(ctx context.Context, id int64) ([]*Address, error) {
	p, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.Addresses, nil
}

func (s *Service) AddAddress(ctx context.Context, id int64, doc Document) (*Address, error) {
	p, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	a, err := DeserializeAddress(doc)
	if err != nil {
		return nil, s.rejected(err)
	}
	p.Addresses = append(p.Addresses, a)
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info().Int64("profile_id", id).Int64("address_id", a.ID).Msg("address added")
	return a, nil
}

func (s *Service) GetAddress(ctx context.Context, id, addressID int64) (*Address, error) {
	p, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	a := p.AddressByID(addressID)
	if a == nil {
		return nil, notFound("Address", addressID)
	}
	return a, nil
}

func (s *Service) UpdateAddress(ctx context.Context, id, addressID int64, doc Document) (*Address, error) {
	p, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.AddressByID(addressID) == nil {
		return nil, notFound("Address", addressID)
	}
	a, err := DeserializeAddress(doc)
	if err != nil {
		return nil, s.rejected(err)
	}
	a.ID, a.ProfileID = addressID, id
	for i := range p.Addresses {
		if p.Addresses[i].ID == addressID {
			p.Addresses[i] = a
		}
	}
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info().Int64("profile_id", id).Int64("address_id", addressID).Msg("address updated")
	return a, nil
}

// DeleteAddress removes an address from an existing profile. An unknown
// address id succeeds.
func (s *Service) DeleteAddress(ctx context.Context, id, addressID int64) error {
	p, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if !p.RemoveAddress(addressID) {
		return nil
	}
	if err := s.save(ctx, p); err != nil {
		return err
	}
	s.log.Info().Int64("profile_id", id).Int64("address_id", addressID).Msg("address deleted")
	return nil
}

func ignoreNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
