package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/Cristhianmcc/marketPOS-sub004/internal/application/dto"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/entity"
)

// storeGetter es el contrato mínimo que necesita el middleware para leer la tienda.
// Lo implementan los repositorios de tiendas (postgres y memoria).
type storeGetter interface {
	GetByID(ctx context.Context, id string) (*entity.Store, error)
}

// RequireActiveStore verifica que la tienda del token exista y esté activa antes de
// permitir envíos a SUNAT. Debe usarse DESPUÉS de AuthMiddleware (necesita LocalStoreID).
//
// Comportamiento:
//   - 403 Forbidden → tienda suspendida o inactiva.
//   - 404 Not Found → la tienda del token no existe.
//   - 503 Service Unavailable → fallo de infraestructura al consultar la DB.
func RequireActiveStore(stores storeGetter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		storeID := GetStoreID(c)
		if storeID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Code:    "UNAUTHORIZED",
				Message: "store_id no encontrado en el token",
			})
		}

		store, err := stores.GetByID(c.Context(), storeID)
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
				Code:    "STORE_CHECK_FAILED",
				Message: "no se pudo verificar la tienda, intente más tarde",
			})
		}
		if store == nil {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Code:    "NOT_FOUND",
				Message: "tienda no encontrada",
			})
		}
		if store.Status != "" && store.Status != "active" {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Code:    "STORE_SUSPENDED",
				Message: "la tienda '" + store.Name + "' no está habilitada para emitir",
			})
		}

		return c.Next()
	}
}
