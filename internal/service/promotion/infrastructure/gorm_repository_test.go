package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"nexus-delivery/internal/pkg/apperr"
	"nexus-delivery/internal/service/promotion/domain"
)

func TestGormVoucherRepositoryRoundTrip(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	repo := NewGormVoucherRepository(db)
	require.NoError(t, repo.AutoMigrate())

	max := decimal.NewFromInt(30000)
	to := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, repo.Save(context.Background(), &domain.Voucher{
		ID: "v-1", Code: "SALE50", DiscountValue: decimal.NewFromInt(50000),
		MaxDiscountAmount: &max, IsActive: true, ValidTo: &to, Condition: `store_id == "s-1"`,
	}))

	v, err := repo.FindByCode(context.Background(), "SALE50")
	require.NoError(t, err)
	assert.Equal(t, "v-1", v.ID)
	assert.Nil(t, v.MinOrderValue)
	require.NotNil(t, v.MaxDiscountAmount)
	assert.True(t, v.MaxDiscountAmount.Equal(max))
	require.NotNil(t, v.ValidTo)
	assert.True(t, v.ValidTo.Equal(to))
	assert.Equal(t, `store_id == "s-1"`, v.Condition)

	_, err = repo.FindByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}
