package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"immo-backoffice/internal/models"
)

// DB is a read-only store over database/sql and lib/pq, for deployments that
// read the back-office tables without gorm
type DB struct {
	conn *sql.DB
}

func NewDB(host, port, user, password, dbname, sslmode string) (*DB, error) {
	if sslmode == "" {
		sslmode = "disable"
	}
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(); err != nil {
		return nil, err
	}

	return &DB{conn: conn}, nil
}

// NewDBFromConn wraps an existing connection pool
func NewDBFromConn(conn *sql.DB) *DB {
	return &DB{conn: conn}
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// GetPropertyByID retrieves a property by ID
func (db *DB) GetPropertyByID(ctx context.Context, id string) (*models.Property, error) {
	query := `
		SELECT id, organization_id, title, asset_class, region, COALESCE(address, ''),
		       purchase_price, projected_yield, status, created_at, updated_at
		FROM objekte
		WHERE id = $1
	`

	var p models.Property
	var status string
	err := db.conn.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.OrganizationID, &p.Title, &p.AssetClass, &p.Region, &p.Address,
		&p.PurchasePrice, &p.ProjectedYield, &status, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Status = models.PropertyStatus(status)

	return &p, nil
}

// ListCandidateProfiles returns all active acquisition profiles, excluding those
// owned by excludeOrgID when it is set
func (db *DB) ListCandidateProfiles(ctx context.Context, excludeOrgID string) ([]models.AcquisitionProfile, error) {
	query := `
		SELECT id, organization_id, name, min_volume, max_volume, asset_classes,
		       COALESCE(regions, ''), min_yield, COALESCE(notes, ''), active, created_at, updated_at
		FROM ankaufsprofile
		WHERE active = TRUE AND ($1 = '' OR organization_id <> $1)
		ORDER BY created_at ASC, id ASC
	`

	rows, err := db.conn.QueryContext(ctx, query, excludeOrgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := []models.AcquisitionProfile{}
	for rows.Next() {
		var a models.AcquisitionProfile
		err := rows.Scan(
			&a.ID, &a.OrganizationID, &a.Name, &a.MinVolume, &a.MaxVolume, &a.AssetClasses,
			&a.Regions, &a.MinYield, &a.Notes, &a.Active, &a.CreatedAt, &a.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, a)
	}

	return profiles, rows.Err()
}

// GetOrganizationsByIDs fetches the organizations with the given ids
func (db *DB) GetOrganizationsByIDs(ctx context.Context, ids []string) ([]models.Organization, error) {
	if len(ids) == 0 {
		return []models.Organization{}, nil
	}

	query := `
		SELECT id, name, COALESCE(contact_person, ''), COALESCE(email, ''),
		       COALESCE(phone, ''), COALESCE(city, ''), created_at, updated_at
		FROM mandanten
		WHERE id = ANY($1)
		ORDER BY name ASC
	`

	rows, err := db.conn.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orgs := []models.Organization{}
	for rows.Next() {
		var o models.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.ContactPerson, &o.Email, &o.Phone, &o.City, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		orgs = append(orgs, o)
	}

	return orgs, rows.Err()
}

// GetLatestAnalysis returns the newest analysis of a property
func (db *DB) GetLatestAnalysis(ctx context.Context, propertyID string) (*models.Analysis, error) {
	query := `
		SELECT id, property_id, purchase_price, annual_rent, projected_yield, created_at
		FROM auswertungen
		WHERE property_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	var a models.Analysis
	err := db.conn.QueryRowContext(ctx, query, propertyID).Scan(
		&a.ID, &a.PropertyID, &a.PurchasePrice, &a.AnnualRent, &a.ProjectedYield, &a.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &a, nil
}
