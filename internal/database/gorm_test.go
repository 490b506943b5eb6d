package database

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"immo-backoffice/internal/models"
)

func setupTestDB(t *testing.T) *GormDB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	gdb := NewGormDBFromDB(db)
	require.NoError(t, gdb.InitSchema())
	return gdb
}

func TestGormDB_PropertyRoundTrip(t *testing.T) {
	gdb := setupTestDB(t)
	ctx := context.Background()

	p := &models.Property{
		OrganizationID: "org-1",
		Title:          "MFH Eppendorf",
		AssetClass:     "Wohnen",
		Region:         "Hamburg-Nord",
		PurchasePrice:  decimal.NewFromInt(800000),
		ProjectedYield: decimal.NewNullDecimal(decimal.NewFromFloat(4.25)),
	}
	require.NoError(t, gdb.SaveProperty(ctx, p))
	require.NotEmpty(t, p.ID)

	got, err := gdb.GetPropertyByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hamburg-Nord", got.Region)
	assert.True(t, got.PurchasePrice.Equal(decimal.NewFromInt(800000)))
	assert.True(t, got.ProjectedYield.Valid)
	assert.True(t, got.ProjectedYield.Decimal.Equal(decimal.NewFromFloat(4.25)))
	assert.Equal(t, models.PropertyStatusActive, got.Status)

	_, err = gdb.GetPropertyByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormDB_ArchiveProperty(t *testing.T) {
	gdb := setupTestDB(t)
	ctx := context.Background()

	p := &models.Property{OrganizationID: "org-1", Title: "Halle", AssetClass: "Gewerbe", Region: "Bremen"}
	require.NoError(t, gdb.SaveProperty(ctx, p))

	require.NoError(t, gdb.ArchiveProperty(ctx, p.ID))
	active, err := gdb.GetActiveProperties(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	assert.ErrorIs(t, gdb.ArchiveProperty(ctx, "missing"), ErrNotFound)
}

func TestGormDB_ListCandidateProfiles(t *testing.T) {
	gdb := setupTestDB(t)
	ctx := context.Background()

	profiles := []*models.AcquisitionProfile{
		{OrganizationID: "seller", Name: "Eigenes Profil", Active: true},
		{OrganizationID: "buyer-1", Name: "Core", Active: true, AssetClasses: []string{"Wohnen"}, Regions: "Hamburg"},
		{OrganizationID: "buyer-2", Name: "Value Add", Active: true, MinVolume: decimal.NewNullDecimal(decimal.NewFromInt(1000000))},
		{OrganizationID: "buyer-2", Name: "Inaktiv", Active: true},
	}
	for _, p := range profiles {
		require.NoError(t, gdb.SaveProfile(ctx, p))
	}
	// gorm skips zero-value bools on create, so deactivate explicitly
	require.NoError(t, gdb.DB().Model(&models.AcquisitionProfile{}).Where("id = ?", profiles[3].ID).Update("active", false).Error)

	all, err := gdb.ListCandidateProfiles(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	others, err := gdb.ListCandidateProfiles(ctx, "seller")
	require.NoError(t, err)
	var names []string
	for _, p := range others {
		names = append(names, p.Name)
	}
	assert.ElementsMatch(t, []string{"Core", "Value Add"}, names)

	for _, p := range others {
		if p.Name == "Core" {
			assert.Equal(t, []string{"Wohnen"}, []string(p.AssetClasses))
			assert.False(t, p.MinVolume.Valid)
		}
		if p.Name == "Value Add" {
			assert.True(t, p.MinVolume.Valid)
		}
	}
}

func TestGormDB_GetOrganizationsByIDs(t *testing.T) {
	gdb := setupTestDB(t)
	ctx := context.Background()

	a := &models.Organization{Name: "Nordkap Invest", Email: "info@nordkap.de"}
	b := &models.Organization{Name: "Alster Capital"}
	require.NoError(t, gdb.SaveOrganization(ctx, a))
	require.NoError(t, gdb.SaveOrganization(ctx, b))

	orgs, err := gdb.GetOrganizationsByIDs(ctx, []string{a.ID, b.ID, "ghost"})
	require.NoError(t, err)
	require.Len(t, orgs, 2)
	assert.Equal(t, "Alster Capital", orgs[0].Name)

	orgs, err = gdb.GetOrganizationsByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, orgs)
}

func TestGormDB_GetLatestAnalysis(t *testing.T) {
	gdb := setupTestDB(t)
	ctx := context.Background()

	_, err := gdb.GetLatestAnalysis(ctx, "obj-1")
	assert.ErrorIs(t, err, ErrNotFound)

	older := &models.Analysis{
		PropertyID:    "obj-1",
		PurchasePrice: decimal.NewFromInt(800000),
		AnnualRent:    decimal.NewFromInt(32000),
		CreatedAt:     time.Now().Add(-48 * time.Hour),
	}
	newer := &models.Analysis{
		PropertyID:    "obj-1",
		PurchasePrice: decimal.NewFromInt(800000),
		AnnualRent:    decimal.NewFromInt(40000),
		CreatedAt:     time.Now(),
	}
	require.NoError(t, gdb.SaveAnalysis(ctx, older))
	require.NoError(t, gdb.SaveAnalysis(ctx, newer))

	got, err := gdb.GetLatestAnalysis(ctx, "obj-1")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID)
	require.True(t, got.ProjectedYield.Valid)
	assert.True(t, got.ProjectedYield.Decimal.Equal(decimal.NewFromInt(5)))
}
