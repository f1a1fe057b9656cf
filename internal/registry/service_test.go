package registry

import (
	"context"
	"testing"

	"github.com/technicaldee/locallift/internal/domain"
	"github.com/technicaldee/locallift/internal/pkg/apperr"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupRegistry(t *testing.T) *Service {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Business{}))
	return &Service{DB: db}
}

func TestRegister(t *testing.T) {
	svc := setupRegistry(t)
	ctx := context.Background()

	business, err := svc.Register(ctx, "biz_1", "0xabc123")
	require.NoError(t, err)
	assert.Equal(t, "biz_1", business.ID)
	assert.Equal(t, "0xabc123", business.CustodyWallet)
	assert.True(t, business.Active)
}

func TestRegister_DuplicateID(t *testing.T) {
	svc := setupRegistry(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "biz_1", "0xabc123")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "biz_1", "0xdef456")
	assert.True(t, apperr.Is(err, apperr.CodeAlreadyExists))

	// The original registration is untouched.
	got, err := svc.Get(ctx, "biz_1")
	require.NoError(t, err)
	assert.Equal(t, "0xabc123", got.CustodyWallet)
}

func TestRegister_InvalidWallet(t *testing.T) {
	svc := setupRegistry(t)
	ctx := context.Background()

	for _, wallet := range []string{
		"",
		"   ",
		"0x",
		"0x0000000000000000000000000000000000000000",
		"000000",
	} {
		_, err := svc.Register(ctx, "biz_w", wallet)
		assert.True(t, apperr.Is(err, apperr.CodeInvalidWallet), "wallet %q", wallet)
	}
}

func TestDeactivate(t *testing.T) {
	svc := setupRegistry(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "biz_1", "0xabc123")
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, "biz_1"))
	got, err := svc.Get(ctx, "biz_1")
	require.NoError(t, err)
	assert.False(t, got.Active)

	// Idempotent on an already-inactive business.
	require.NoError(t, svc.Deactivate(ctx, "biz_1"))

	err = svc.Deactivate(ctx, "missing")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestGet_NotFound(t *testing.T) {
	svc := setupRegistry(t)

	_, err := svc.Get(context.Background(), "nope")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}
