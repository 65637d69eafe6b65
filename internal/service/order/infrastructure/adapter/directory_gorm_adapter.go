package adapter

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"nexus-delivery/internal/pkg/apperr"
	"nexus-delivery/internal/service/order/domain/port"
)

// AddressModel 对应地址簿服务的 addresses 表，这里只读
type AddressModel struct {
	ID          string `gorm:"primaryKey;size:36"`
	UserID      string `gorm:"size:64;index"`
	FullAddress string `gorm:"size:512"`
	Latitude    float64
	Longitude   float64
}

func (AddressModel) TableName() string {
	return "addresses"
}

// StoreModel 对应门店目录的 stores 表，这里只读
type StoreModel struct {
	ID        string `gorm:"primaryKey;size:36"`
	OwnerID   string `gorm:"size:64;index"`
	Name      string `gorm:"size:255"`
	Latitude  float64
	Longitude float64
}

func (StoreModel) TableName() string {
	return "stores"
}

// DirectoryGormAdapter 同时实现 port.AddressStore 与 port.StoreDirectory
type DirectoryGormAdapter struct {
	db *gorm.DB
}

func NewDirectoryGormAdapter(db *gorm.DB) *DirectoryGormAdapter {
	return &DirectoryGormAdapter{db: db}
}

// AutoMigrate 只在本地环境使用，生产中这两张表归各自的服务所有
func (a *DirectoryGormAdapter) AutoMigrate() error {
	return a.db.AutoMigrate(&AddressModel{}, &StoreModel{})
}

func (a *DirectoryGormAdapter) FindAddress(ctx context.Context, addressID string) (*port.Address, error) {
	var m AddressModel
	err := a.db.WithContext(ctx).Where("id = ?", addressID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("address %s not found", addressID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "query address")
	}
	return &port.Address{ID: m.ID, UserID: m.UserID, FullAddress: m.FullAddress, Lat: m.Latitude, Lng: m.Longitude}, nil
}

func (a *DirectoryGormAdapter) FindStore(ctx context.Context, storeID string) (*port.Store, error) {
	var m StoreModel
	err := a.db.WithContext(ctx).Where("id = ?", storeID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("store %s not found", storeID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "query store")
	}
	return &port.Store{ID: m.ID, OwnerID: m.OwnerID, Name: m.Name, Lat: m.Latitude, Lng: m.Longitude}, nil
}
