package repository

import (
	"context"

	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/entity"
)

// StoreRepository define el puerto de lectura de tiendas (tenant emisor).
type StoreRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Store, error)
}
