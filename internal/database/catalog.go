package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// ── Products ──

const productColumns = `id, shop_id, name, price, taxable, is_active, created_at, updated_at`

const createProduct = `
INSERT INTO products (shop_id, name, price, taxable)
VALUES ($1, $2, $3, $4)
RETURNING ` + productColumns

type CreateProductParams struct {
	ShopID  uuid.UUID
	Name    string
	Price   pgtype.Numeric
	Taxable bool
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, createProduct, arg.ShopID, arg.Name, arg.Price, arg.Taxable)
	return scanProduct(row)
}

const getProduct = `
SELECT ` + productColumns + `
FROM products
WHERE id = $1 AND shop_id = $2 AND is_active = true
`

type GetProductParams struct {
	ID     uuid.UUID
	ShopID uuid.UUID
}

func (q *Queries) GetProduct(ctx context.Context, arg GetProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProduct, arg.ID, arg.ShopID))
}

const listProductsByShop = `
SELECT ` + productColumns + `
FROM products
WHERE shop_id = $1 AND is_active = true
ORDER BY name
`

func (q *Queries) ListProductsByShop(ctx context.Context, shopID uuid.UUID) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProductsByShop, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func scanProduct(row rowScanner) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.ShopID, &p.Name, &p.Price, &p.Taxable, &p.IsActive,
		&p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// ── Services ──

const serviceColumns = `id, shop_id, name, description, taxable, is_active, created_at, updated_at`

const createService = `
INSERT INTO services (shop_id, name, description, taxable)
VALUES ($1, $2, $3, $4)
RETURNING ` + serviceColumns

type CreateServiceParams struct {
	ShopID      uuid.UUID
	Name        string
	Description pgtype.Text
	Taxable     bool
}

func (q *Queries) CreateService(ctx context.Context, arg CreateServiceParams) (Service, error) {
	row := q.db.QueryRow(ctx, createService, arg.ShopID, arg.Name, arg.Description, arg.Taxable)
	return scanService(row)
}

const getService = `
SELECT ` + serviceColumns + `
FROM services
WHERE id = $1 AND shop_id = $2 AND is_active = true
`

type GetServiceParams struct {
	ID     uuid.UUID
	ShopID uuid.UUID
}

func (q *Queries) GetService(ctx context.Context, arg GetServiceParams) (Service, error) {
	return scanService(q.db.QueryRow(ctx, getService, arg.ID, arg.ShopID))
}

const listServicesByShop = `
SELECT ` + serviceColumns + `
FROM services
WHERE shop_id = $1 AND is_active = true
ORDER BY name
`

func (q *Queries) ListServicesByShop(ctx context.Context, shopID uuid.UUID) ([]Service, error) {
	rows, err := q.db.Query(ctx, listServicesByShop, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

func scanService(row rowScanner) (Service, error) {
	var s Service
	err := row.Scan(&s.ID, &s.ShopID, &s.Name, &s.Description, &s.Taxable, &s.IsActive,
		&s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// ── Service pricing tiers ──

const tierColumns = `id, service_id, name, label, price, vehicle_size_aware,
	sedan_price, truck_suv_price, suv_van_price,
	per_unit, per_unit_label, per_unit_max, sort_order`

const createServiceTier = `
INSERT INTO service_tiers (service_id, name, label, price, vehicle_size_aware,
	sedan_price, truck_suv_price, suv_van_price, per_unit, per_unit_label, per_unit_max, sort_order)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING ` + tierColumns

type CreateServiceTierParams struct {
	ServiceID        uuid.UUID
	Name             string
	Label            string
	Price            pgtype.Numeric
	VehicleSizeAware bool
	SedanPrice       pgtype.Numeric
	TruckSuvPrice    pgtype.Numeric
	SuvVanPrice      pgtype.Numeric
	PerUnit          bool
	PerUnitLabel     pgtype.Text
	PerUnitMax       pgtype.Int4
	SortOrder        int32
}

func (q *Queries) CreateServiceTier(ctx context.Context, arg CreateServiceTierParams) (ServiceTier, error) {
	row := q.db.QueryRow(ctx, createServiceTier, arg.ServiceID, arg.Name, arg.Label,
		arg.Price, arg.VehicleSizeAware, arg.SedanPrice, arg.TruckSuvPrice, arg.SuvVanPrice,
		arg.PerUnit, arg.PerUnitLabel, arg.PerUnitMax, arg.SortOrder)
	return scanServiceTier(row)
}

const getServiceTier = `
SELECT ` + tierColumns + `
FROM service_tiers
WHERE service_id = $1 AND name = $2
`

type GetServiceTierParams struct {
	ServiceID uuid.UUID
	Name      string
}

func (q *Queries) GetServiceTier(ctx context.Context, arg GetServiceTierParams) (ServiceTier, error) {
	return scanServiceTier(q.db.QueryRow(ctx, getServiceTier, arg.ServiceID, arg.Name))
}

const listTiersByService = `
SELECT ` + tierColumns + `
FROM service_tiers
WHERE service_id = $1
ORDER BY sort_order, name
`

func (q *Queries) ListTiersByService(ctx context.Context, serviceID uuid.UUID) ([]ServiceTier, error) {
	rows, err := q.db.Query(ctx, listTiersByService, serviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTiers(rows)
}

const listTiersByServices = `
SELECT ` + tierColumns + `
FROM service_tiers
WHERE service_id = ANY($1)
ORDER BY service_id, sort_order, name
`

// ListTiersByServices fetches current tier definitions for a set of
// services in one round trip; used to re-resolve prices after a vehicle
// change.
func (q *Queries) ListTiersByServices(ctx context.Context, serviceIDs []uuid.UUID) ([]ServiceTier, error) {
	rows, err := q.db.Query(ctx, listTiersByServices, serviceIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTiers(rows)
}

func collectTiers(rows interface {
	rowScanner
	Next() bool
	Err() error
}) ([]ServiceTier, error) {
	var tiers []ServiceTier
	for rows.Next() {
		t, err := scanServiceTier(rows)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}

func scanServiceTier(row rowScanner) (ServiceTier, error) {
	var t ServiceTier
	err := row.Scan(&t.ID, &t.ServiceID, &t.Name, &t.Label, &t.Price, &t.VehicleSizeAware,
		&t.SedanPrice, &t.TruckSuvPrice, &t.SuvVanPrice,
		&t.PerUnit, &t.PerUnitLabel, &t.PerUnitMax, &t.SortOrder)
	return t, err
}
