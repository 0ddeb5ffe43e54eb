package patient

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type profileRepoSQLite struct {
	db *sql.DB
}

// NewProfileRepoSQLite returns a store over an embedded SQLite database. The
// connection must enforce foreign keys for cascading deletes.
func NewProfileRepoSQLite(db *sql.DB) ProfileRepository {
	return &profileRepoSQLite{db: db}
}

type sqliteQueryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (r *profileRepoSQLite) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *profileRepoSQLite) Create(ctx context.Context, p *Profile) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, insertProfileSQL, r.profileArgs(p)...)
		if err != nil {
			return fmt.Errorf("insert profile: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("profile id: %w", err)
		}
		p.ID = id
		return r.writeChildren(ctx, tx, p)
	})
}

func (r *profileRepoSQLite) Save(ctx context.Context, p *Profile) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, updateProfileSQL, append(r.profileArgs(p), p.ID)...)
		if err != nil {
			return fmt.Errorf("update profile %d: %w", p.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}

		q, args := deleteOrphansSQL("patient_name", p.ID, keptNameIDs(p))
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("delete orphan names: %w", err)
		}
		q, args = deleteOrphansSQL("patient_address", p.ID, keptAddressIDs(p))
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("delete orphan addresses: %w", err)
		}
		return r.writeChildren(ctx, tx, p)
	})
}

// writeChildren updates stored children and inserts new ones.
func (r *profileRepoSQLite) writeChildren(ctx context.Context, tx *sql.Tx, p *Profile) error {
	for _, n := range p.Names {
		n.ProfileID = p.ID
		if n.ID != 0 {
			if _, err := tx.ExecContext(ctx, updateNameSQL, append(nameArgs(n), n.ID, p.ID)...); err != nil {
				return fmt.Errorf("update name %d: %w", n.ID, err)
			}
			continue
		}
		res, err := tx.ExecContext(ctx, insertNameSQL, append([]interface{}{p.ID}, nameArgs(n)...)...)
		if err != nil {
			return fmt.Errorf("insert name: %w", err)
		}
		if n.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("name id: %w", err)
		}
	}
	for _, a := range p.Addresses {
		a.ProfileID = p.ID
		if a.ID != 0 {
			if _, err := tx.ExecContext(ctx, updateAddressSQL, append(addressArgs(a), a.ID, p.ID)...); err != nil {
				return fmt.Errorf("update address %d: %w", a.ID, err)
			}
			continue
		}
		res, err := tx.ExecContext(ctx, insertAddressSQL, append([]interface{}{p.ID}, addressArgs(a)...)...)
		if err != nil {
			return fmt.Errorf("insert address: %w", err)
		}
		if a.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("address id: %w", err)
		}
	}
	return nil
}

func (r *profileRepoSQLite) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, deleteProfileSQL, id); err != nil {
		return fmt.Errorf("delete profile %d: %w", id, err)
	}
	return nil
}

func (r *profileRepoSQLite) Find(ctx context.Context, id int64) (*Profile, error) {
	found, err := r.load(ctx, r.db, "p.id = ?", []interface{}{id})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return found[0], nil
}

func (r *profileRepoSQLite) All(ctx context.Context) ([]*Profile, error) {
	return r.Search(ctx, Criteria{})
}

func (r *profileRepoSQLite) Search(ctx context.Context, c Criteria) ([]*Profile, error) {
	pred, args := c.where()
	return r.load(ctx, r.db, pred, args)
}

func (r *profileRepoSQLite) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *profileRepoSQLite) profileArgs(p *Profile) []interface{} {
	return []interface{}{
		p.ResourceType, p.Active, p.BirthDate.Format(dateLayout), p.Gender.String(),
		p.PhoneHome, p.PhoneOffice, p.PhoneCell, p.Email,
	}
}

// load runs the profile query and its two child queries. Each result set is
// drained and closed before the next query so a single-connection pool never
// blocks on itself.
func (r *profileRepoSQLite) load(ctx context.Context, q sqliteQueryer, pred string, args []interface{}) ([]*Profile, error) {
	profileSQL, nameSQL, addressSQL := selectProfilesSQL(pred)

	profiles, err := queryProfilesSQLite(ctx, q, profileSQL, args)
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return profiles, nil
	}
	names, err := queryNamesSQLite(ctx, q, nameSQL, args)
	if err != nil {
		return nil, err
	}
	addrs, err := queryAddressesSQLite(ctx, q, addressSQL, args)
	if err != nil {
		return nil, err
	}
	assemble(profiles, names, addrs)
	return profiles, nil
}

func queryProfilesSQLite(ctx context.Context, q sqliteQueryer, query string, args []interface{}) ([]*Profile, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()
	profiles := []*Profile{}
	for rows.Next() {
		p, err := scanProfileSQLite(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return profiles, nil
}

func queryNamesSQLite(ctx context.Context, q sqliteQueryer, query string, args []interface{}) ([]*Name, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query names: %w", err)
	}
	defer rows.Close()
	var names []*Name
	for rows.Next() {
		n := &Name{}
		if err := rows.Scan(&n.ID, &n.ProfileID, &n.Use, &n.Family, &n.Given1, &n.Given2, &n.Prefix1, &n.Prefix2); err != nil {
			return nil, fmt.Errorf("scan name: %w", err)
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate names: %w", err)
	}
	return names, nil
}

func queryAddressesSQLite(ctx context.Context, q sqliteQueryer, query string, args []interface{}) ([]*Address, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query addresses: %w", err)
	}
	defer rows.Close()
	var addrs []*Address
	for rows.Next() {
		a := &Address{}
		if err := rows.Scan(&a.ID, &a.ProfileID, &a.Use, &a.Type, &a.Text,
			&a.Line1, &a.Line2, &a.City, &a.State, &a.PostalCode, &a.Country); err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		addrs = append(addrs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate addresses: %w", err)
	}
	return addrs, nil
}

func scanProfileSQLite(rows *sql.Rows) (*Profile, error) {
	var (
		p      Profile
		birth  string
		gender string
	)
	if err := rows.Scan(&p.ID, &p.ResourceType, &p.Active, &birth, &gender,
		&p.PhoneHome, &p.PhoneOffice, &p.PhoneCell, &p.Email); err != nil {
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	dob, err := time.Parse(dateLayout, birth)
	if err != nil {
		return nil, fmt.Errorf("profile %d birth date %q: %w", p.ID, birth, err)
	}
	p.BirthDate = dob
	p.Gender = parseStoredGender(gender)
	return &p, nil
}
