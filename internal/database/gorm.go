package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"immo-backoffice/internal/models"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

type GormDB struct {
	db *gorm.DB
}

// NewMySQL connects to MySQL through gorm
func NewMySQL(host, port, user, password, dbname string) (*GormDB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		user, password, host, port, dbname)
	return open(mysql.Open(dsn))
}

// NewPostgres connects to PostgreSQL through gorm
func NewPostgres(host, port, user, password, dbname, sslmode string) (*GormDB, error) {
	if sslmode == "" {
		sslmode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)
	return open(postgres.Open(dsn))
}

// NewSQLite opens a SQLite file, for local development
func NewSQLite(path string) (*GormDB, error) {
	if path == "" {
		path = "immo.db"
	}
	return open(sqlite.Open(path))
}

func open(dialector gorm.Dialector) (*GormDB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}

	return &GormDB{db: db}, nil
}

// NewGormDBFromDB creates a GormDB wrapper from an existing gorm.DB instance
func NewGormDBFromDB(db *gorm.DB) *GormDB {
	return &GormDB{db: db}
}

// DB returns the underlying gorm.DB instance
func (gdb *GormDB) DB() *gorm.DB {
	return gdb.db
}

func (gdb *GormDB) Close() error {
	sqlDB, err := gdb.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InitSchema creates tables using GORM AutoMigrate
func (gdb *GormDB) InitSchema() error {
	return gdb.db.AutoMigrate(
		&models.Organization{},
		&models.Property{},
		&models.AcquisitionProfile{},
		&models.Analysis{},
		&models.MatchSnapshot{},
		&models.MatchSnapshotEntry{},
		&models.DeleteLog{},
	)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// GetPropertyByID retrieves a property by ID
func (gdb *GormDB) GetPropertyByID(ctx context.Context, id string) (*models.Property, error) {
	var property models.Property
	if err := gdb.db.WithContext(ctx).Where("id = ?", id).First(&property).Error; err != nil {
		return nil, notFound(err)
	}
	return &property, nil
}

// GetActiveProperties retrieves all active properties
func (gdb *GormDB) GetActiveProperties(ctx context.Context) ([]models.Property, error) {
	var properties []models.Property
	err := gdb.db.WithContext(ctx).
		Where("status = ?", models.PropertyStatusActive).
		Order("created_at DESC").
		Find(&properties).Error
	return properties, err
}

// ListCandidateProfiles returns all active acquisition profiles. Profiles owned
// by excludeOrgID are left out unless it is empty.
func (gdb *GormDB) ListCandidateProfiles(ctx context.Context, excludeOrgID string) ([]models.AcquisitionProfile, error) {
	var profiles []models.AcquisitionProfile
	q := gdb.db.WithContext(ctx).Where("active = ?", true)
	if excludeOrgID != "" {
		q = q.Where("organization_id <> ?", excludeOrgID)
	}
	err := q.Order("created_at ASC").Order("id ASC").Find(&profiles).Error
	return profiles, err
}

// GetOrganizationsByIDs fetches the organizations with the given ids. Unknown ids
// are silently absent from the result.
func (gdb *GormDB) GetOrganizationsByIDs(ctx context.Context, ids []string) ([]models.Organization, error) {
	if len(ids) == 0 {
		return []models.Organization{}, nil
	}
	var orgs []models.Organization
	err := gdb.db.WithContext(ctx).Where("id IN ?", ids).Order("name ASC").Find(&orgs).Error
	return orgs, err
}

// GetLatestAnalysis returns the newest analysis of a property
func (gdb *GormDB) GetLatestAnalysis(ctx context.Context, propertyID string) (*models.Analysis, error) {
	var analysis models.Analysis
	err := gdb.db.WithContext(ctx).
		Where("property_id = ?", propertyID).
		Order("created_at DESC").
		First(&analysis).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &analysis, nil
}

// SaveOrganization creates or updates an organization
func (gdb *GormDB) SaveOrganization(ctx context.Context, o *models.Organization) error {
	return gdb.db.WithContext(ctx).Save(o).Error
}

// SaveProperty creates or updates a property
func (gdb *GormDB) SaveProperty(ctx context.Context, p *models.Property) error {
	if p.Status == "" {
		p.Status = models.PropertyStatusActive
	}
	return gdb.db.WithContext(ctx).Save(p).Error
}

// SaveProfile creates or updates an acquisition profile
func (gdb *GormDB) SaveProfile(ctx context.Context, a *models.AcquisitionProfile) error {
	return gdb.db.WithContext(ctx).Save(a).Error
}

// SaveAnalysis stores a new analysis
func (gdb *GormDB) SaveAnalysis(ctx context.Context, a *models.Analysis) error {
	return gdb.db.WithContext(ctx).Create(a).Error
}

// ArchiveProperty marks a property as archived (logical deletion)
func (gdb *GormDB) ArchiveProperty(ctx context.Context, id string) error {
	now := time.Now()
	res := gdb.db.WithContext(ctx).Model(&models.Property{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      models.PropertyStatusArchived,
			"archived_at": &now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
