package database

import (
	"context"

	"github.com/google/uuid"
)

const createShop = `
INSERT INTO shops (name, phone, address)
VALUES ($1, $2, $3)
RETURNING id, name, phone, address, created_at
`

type CreateShopParams struct {
	Name    string
	Phone   string
	Address string
}

func (q *Queries) CreateShop(ctx context.Context, arg CreateShopParams) (Shop, error) {
	row := q.db.QueryRow(ctx, createShop, arg.Name, arg.Phone, arg.Address)
	var s Shop
	err := row.Scan(&s.ID, &s.Name, &s.Phone, &s.Address, &s.CreatedAt)
	return s, err
}

const getShop = `
SELECT id, name, phone, address, created_at
FROM shops
WHERE id = $1
`

func (q *Queries) GetShop(ctx context.Context, id uuid.UUID) (Shop, error) {
	row := q.db.QueryRow(ctx, getShop, id)
	var s Shop
	err := row.Scan(&s.ID, &s.Name, &s.Phone, &s.Address, &s.CreatedAt)
	return s, err
}

const userColumns = `id, shop_id, email, password_hash, name, role, is_active, created_at, updated_at`

const createUser = `
INSERT INTO users (shop_id, email, password_hash, name, role)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + userColumns

type CreateUserParams struct {
	ShopID       uuid.UUID
	Email        string
	PasswordHash string
	Name         string
	Role         string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, createUser, arg.ShopID, arg.Email, arg.PasswordHash, arg.Name, arg.Role)
	return scanUser(row)
}

const getUserByEmail = `
SELECT ` + userColumns + `
FROM users
WHERE email = $1 AND is_active = true
`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByEmail, email))
}

const getUser = `
SELECT ` + userColumns + `
FROM users
WHERE id = $1
`

func (q *Queries) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUser, id))
}

const listUsersByShop = `
SELECT ` + userColumns + `
FROM users
WHERE shop_id = $1 AND is_active = true
ORDER BY name
`

func (q *Queries) ListUsersByShop(ctx context.Context, shopID uuid.UUID) ([]User, error) {
	rows, err := q.db.Query(ctx, listUsersByShop, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

const updateUser = `
UPDATE users
SET email = $3, name = $4, role = $5, updated_at = now()
WHERE id = $1 AND shop_id = $2
RETURNING ` + userColumns

type UpdateUserParams struct {
	ID     uuid.UUID
	ShopID uuid.UUID
	Email  string
	Name   string
	Role   string
}

func (q *Queries) UpdateUser(ctx context.Context, arg UpdateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, updateUser, arg.ID, arg.ShopID, arg.Email, arg.Name, arg.Role)
	return scanUser(row)
}

const deactivateUser = `
UPDATE users
SET is_active = false, updated_at = now()
WHERE id = $1 AND shop_id = $2
RETURNING id
`

func (q *Queries) DeactivateUser(ctx context.Context, arg DeactivateUserParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx, deactivateUser, arg.ID, arg.ShopID).Scan(&id)
	return id, err
}

type DeactivateUserParams struct {
	ID     uuid.UUID
	ShopID uuid.UUID
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.ShopID, &u.Email, &u.PasswordHash, &u.Name, &u.Role,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}
