package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const customerColumns = `id, shop_id, name, phone, email, notes, loyalty_points, is_active, created_at, updated_at`

const createCustomer = `
INSERT INTO customers (shop_id, name, phone, email, notes)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + customerColumns

type CreateCustomerParams struct {
	ShopID uuid.UUID
	Name   string
	Phone  string
	Email  pgtype.Text
	Notes  pgtype.Text
}

func (q *Queries) CreateCustomer(ctx context.Context, arg CreateCustomerParams) (Customer, error) {
	row := q.db.QueryRow(ctx, createCustomer, arg.ShopID, arg.Name, arg.Phone, arg.Email, arg.Notes)
	return scanCustomer(row)
}

const getCustomer = `
SELECT ` + customerColumns + `
FROM customers
WHERE id = $1 AND shop_id = $2
`

type GetCustomerParams struct {
	ID     uuid.UUID
	ShopID uuid.UUID
}

func (q *Queries) GetCustomer(ctx context.Context, arg GetCustomerParams) (Customer, error) {
	return scanCustomer(q.db.QueryRow(ctx, getCustomer, arg.ID, arg.ShopID))
}

const listCustomersByShop = `
SELECT ` + customerColumns + `
FROM customers
WHERE shop_id = $1 AND is_active = true
  AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR phone LIKE '%' || $2 || '%')
ORDER BY name
LIMIT $3 OFFSET $4
`

type ListCustomersByShopParams struct {
	ShopID uuid.UUID
	Search string
	Limit  int32
	Offset int32
}

func (q *Queries) ListCustomersByShop(ctx context.Context, arg ListCustomersByShopParams) ([]Customer, error) {
	rows, err := q.db.Query(ctx, listCustomersByShop, arg.ShopID, arg.Search, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

const updateCustomer = `
UPDATE customers
SET name = $3, phone = $4, email = $5, notes = $6, updated_at = now()
WHERE id = $1 AND shop_id = $2
RETURNING ` + customerColumns

type UpdateCustomerParams struct {
	ID     uuid.UUID
	ShopID uuid.UUID
	Name   string
	Phone  string
	Email  pgtype.Text
	Notes  pgtype.Text
}

func (q *Queries) UpdateCustomer(ctx context.Context, arg UpdateCustomerParams) (Customer, error) {
	row := q.db.QueryRow(ctx, updateCustomer, arg.ID, arg.ShopID, arg.Name, arg.Phone, arg.Email, arg.Notes)
	return scanCustomer(row)
}

const adjustLoyaltyPoints = `
UPDATE customers
SET loyalty_points = loyalty_points + $2, updated_at = now()
WHERE id = $1
RETURNING ` + customerColumns

type AdjustLoyaltyPointsParams struct {
	ID    uuid.UUID
	Delta int32
}

func (q *Queries) AdjustLoyaltyPoints(ctx context.Context, arg AdjustLoyaltyPointsParams) (Customer, error) {
	return scanCustomer(q.db.QueryRow(ctx, adjustLoyaltyPoints, arg.ID, arg.Delta))
}

func scanCustomer(row rowScanner) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.ShopID, &c.Name, &c.Phone, &c.Email, &c.Notes,
		&c.LoyaltyPoints, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// ── Vehicles ──

const vehicleColumns = `id, customer_id, make, model, year, color, size_class, license_plate, created_at`

const createVehicle = `
INSERT INTO vehicles (customer_id, make, model, year, color, size_class, license_plate)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + vehicleColumns

type CreateVehicleParams struct {
	CustomerID   uuid.UUID
	Make         string
	Model        string
	Year         pgtype.Int4
	Color        pgtype.Text
	SizeClass    string
	LicensePlate pgtype.Text
}

func (q *Queries) CreateVehicle(ctx context.Context, arg CreateVehicleParams) (Vehicle, error) {
	row := q.db.QueryRow(ctx, createVehicle, arg.CustomerID, arg.Make, arg.Model,
		arg.Year, arg.Color, arg.SizeClass, arg.LicensePlate)
	return scanVehicle(row)
}

const getVehicle = `
SELECT ` + vehicleColumns + `
FROM vehicles
WHERE id = $1
`

func (q *Queries) GetVehicle(ctx context.Context, id uuid.UUID) (Vehicle, error) {
	return scanVehicle(q.db.QueryRow(ctx, getVehicle, id))
}

const listVehiclesByCustomer = `
SELECT ` + vehicleColumns + `
FROM vehicles
WHERE customer_id = $1
ORDER BY created_at
`

func (q *Queries) ListVehiclesByCustomer(ctx context.Context, customerID uuid.UUID) ([]Vehicle, error) {
	rows, err := q.db.Query(ctx, listVehiclesByCustomer, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

func scanVehicle(row rowScanner) (Vehicle, error) {
	var v Vehicle
	err := row.Scan(&v.ID, &v.CustomerID, &v.Make, &v.Model, &v.Year, &v.Color,
		&v.SizeClass, &v.LicensePlate, &v.CreatedAt)
	return v, err
}
