package repo

import (
	"context"
	"database/sql"

	"taskmaster/internal/domain"
)

const profileCols = "id, name, email, role, phone, created_at"

func scanProfile(row interface{ Scan(...any) error }) (domain.UserProfile, error) {
	var u domain.UserProfile
	var phone sql.NullString
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &phone, &u.CreatedAt)
	if err != nil {
		return domain.UserProfile{}, err
	}
	u.Phone = phone.String
	return u, nil
}

func (r *Repo) InsertProfile(ctx context.Context, tx *sql.Tx, u domain.UserProfile) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO profiles (`+profileCols+`) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.Role, nullable(u.Phone), u.CreatedAt)
	return err
}

func (r *Repo) UpdateProfile(ctx context.Context, tx *sql.Tx, u domain.UserProfile) error {
	res, err := tx.ExecContext(ctx, `UPDATE profiles SET name = ?, email = ?, role = ?, phone = ? WHERE id = ?`,
		u.Name, u.Email, u.Role, nullable(u.Phone), u.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) DeleteProfile(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) GetProfile(ctx context.Context, id string) (domain.UserProfile, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+profileCols+` FROM profiles WHERE id = ?`, id)
	u, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return domain.UserProfile{}, ErrNotFound
	}
	return u, err
}

func (r *Repo) GetProfileByEmail(ctx context.Context, email string) (domain.UserProfile, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+profileCols+` FROM profiles WHERE email = ?`, email)
	u, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return domain.UserProfile{}, ErrNotFound
	}
	return u, err
}

func (r *Repo) ListProfiles(ctx context.Context) ([]domain.UserProfile, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+profileCols+` FROM profiles ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.UserProfile
	for rows.Next() {
		u, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
