package patient

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type profileRepoPG struct {
	pool *pgxpool.Pool
}

func NewProfileRepoPG(pool *pgxpool.Pool) ProfileRepository {
	return &profileRepoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *profileRepoPG) Create(ctx context.Context, p *Profile) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, rebind(insertProfileSQL)+` RETURNING id`, profileArgsPG(p)...).Scan(&p.ID)
		if err != nil {
			return fmt.Errorf("insert profile: %w", err)
		}
		return writeChildrenPG(ctx, tx, p)
	})
}

func (r *profileRepoPG) Save(ctx context.Context, p *Profile) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, rebind(updateProfileSQL), append(profileArgsPG(p), p.ID)...)
		if err != nil {
			return fmt.Errorf("update profile %d: %w", p.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}

		q, args := deleteOrphansSQL("patient_name", p.ID, keptNameIDs(p))
		if _, err := tx.Exec(ctx, rebind(q), args...); err != nil {
			return fmt.Errorf("delete orphan names: %w", err)
		}
		q, args = deleteOrphansSQL("patient_address", p.ID, keptAddressIDs(p))
		if _, err := tx.Exec(ctx, rebind(q), args...); err != nil {
			return fmt.Errorf("delete orphan addresses: %w", err)
		}
		return writeChildrenPG(ctx, tx, p)
	})
}

func writeChildrenPG(ctx context.Context, q querier, p *Profile) error {
	for _, n := range p.Names {
		n.ProfileID = p.ID
		if n.ID != 0 {
			if _, err := q.Exec(ctx, rebind(updateNameSQL), append(nameArgs(n), n.ID, p.ID)...); err != nil {
				return fmt.Errorf("update name %d: %w", n.ID, err)
			}
			continue
		}
		err := q.QueryRow(ctx, rebind(insertNameSQL)+` RETURNING id`,
			append([]interface{}{p.ID}, nameArgs(n)...)...).Scan(&n.ID)
		if err != nil {
			return fmt.Errorf("insert name: %w", err)
		}
	}
	for _, a := range p.Addresses {
		a.ProfileID = p.ID
		if a.ID != 0 {
			if _, err := q.Exec(ctx, rebind(updateAddressSQL), append(addressArgs(a), a.ID, p.ID)...); err != nil {
				return fmt.Errorf("update address %d: %w", a.ID, err)
			}
			continue
		}
		err := q.QueryRow(ctx, rebind(insertAddressSQL)+` RETURNING id`,
			append([]interface{}{p.ID}, addressArgs(a)...)...).Scan(&a.ID)
		if err != nil {
			return fmt.Errorf("insert address: %w", err)
		}
	}
	return nil
}

func (r *profileRepoPG) Delete(ctx context.Context, id int64) error {
	if _, err := r.pool.Exec(ctx, rebind(deleteProfileSQL), id); err != nil {
		return fmt.Errorf("delete profile %d: %w", id, err)
	}
	return nil
}

func (r *profileRepoPG) Find(ctx context.Context, id int64) (*Profile, error) {
	found, err := loadPG(ctx, r.pool, "p.id = ?", []interface{}{id})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return found[0], nil
}

func (r *profileRepoPG) All(ctx context.Context) ([]*Profile, error) {
	return r.Search(ctx, Criteria{})
}

func (r *profileRepoPG) Search(ctx context.Context, c Criteria) ([]*Profile, error) {
	pred, args := c.where()
	return loadPG(ctx, r.pool, pred, args)
}

func (r *profileRepoPG) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func profileArgsPG(p *Profile) []interface{} {
	return []interface{}{
		p.ResourceType, p.Active, p.BirthDate, p.Gender.String(),
		p.PhoneHome, p.PhoneOffice, p.PhoneCell, p.Email,
	}
}

func loadPG(ctx context.Context, q querier, pred string, args []interface{}) ([]*Profile, error) {
	profileSQL, nameSQL, addressSQL := selectProfilesSQL(pred)

	rows, err := q.Query(ctx, rebind(profileSQL), args...)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	profiles, err := pgx.CollectRows(rows, scanProfilePG)
	if err != nil {
		return nil, fmt.Errorf("collect profiles: %w", err)
	}
	if len(profiles) == 0 {
		return []*Profile{}, nil
	}

	rows, err = q.Query(ctx, rebind(nameSQL), args...)
	if err != nil {
		return nil, fmt.Errorf("query names: %w", err)
	}
	names, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Name, error) {
		n := &Name{}
		err := row.Scan(&n.ID, &n.ProfileID, &n.Use, &n.Family, &n.Given1, &n.Given2, &n.Prefix1, &n.Prefix2)
		return n, err
	})
	if err != nil {
		return nil, fmt.Errorf("collect names: %w", err)
	}

	rows, err = q.Query(ctx, rebind(addressSQL), args...)
	if err != nil {
		return nil, fmt.Errorf("query addresses: %w", err)
	}
	addrs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Address, error) {
		a := &Address{}
		err := row.Scan(&a.ID, &a.ProfileID, &a.Use, &a.Type, &a.Text,
			&a.Line1, &a.Line2, &a.City, &a.State, &a.PostalCode, &a.Country)
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("collect addresses: %w", err)
	}

	assemble(profiles, names, addrs)
	return profiles, nil
}

func scanProfilePG(row pgx.CollectableRow) (*Profile, error) {
	var (
		p      Profile
		gender string
	)
	if err := row.Scan(&p.ID, &p.ResourceType, &p.Active, &p.BirthDate, &gender,
		&p.PhoneHome, &p.PhoneOffice, &p.PhoneCell, &p.Email); err != nil {
		return nil, err
	}
	p.Gender = parseStoredGender(gender)
	return &p, nil
}
