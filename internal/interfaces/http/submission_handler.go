package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/Cristhianmcc/marketPOS-sub004/internal/application/billing"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/application/dto"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain"
)

// SubmissionHandler expone el envío de comprobantes a SUNAT (protegido).
type SubmissionHandler struct {
	uc *billing.SubmissionUseCase
}

// NewSubmissionHandler construye el handler.
func NewSubmissionHandler(uc *billing.SubmissionUseCase) *SubmissionHandler {
	return &SubmissionHandler{uc: uc}
}

// Enqueue encola el comprobante firmado para su envío.
// @Summary      Encolar envío a SUNAT
// @Tags         submission
// @Accept       json
// @Produce      json
// @Param        id    path  string                        true   "ID del comprobante"
// @Param        body  body  dto.EnqueueSubmissionRequest  false  "Tipo de job (SEND_DOCUMENT por defecto)"
// @Success      202   {object}  dto.SubmissionResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/documents/{id}/submission [post]
func (h *SubmissionHandler) Enqueue(c *fiber.Ctx) error {
	storeID := GetStoreID(c)
	if storeID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id requerido"})
	}
	var in dto.EnqueueSubmissionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
		}
	}
	resp, err := h.uc.Enqueue(c.Context(), storeID, id, GetUserID(c), in)
	if err != nil {
		return submissionError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(resp)
}

// Retry reintenta un comprobante en ERROR o rechazado por causa transitoria.
// @Summary      Reintentar envío a SUNAT
// @Tags         submission
// @Produce      json
// @Param        id  path  string  true  "ID del comprobante"
// @Success      202  {object}  dto.SubmissionResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/documents/{id}/submission/retry [post]
func (h *SubmissionHandler) Retry(c *fiber.Ctx) error {
	storeID := GetStoreID(c)
	if storeID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	resp, err := h.uc.Retry(c.Context(), storeID, c.Params("id"), GetUserID(c))
	if err != nil {
		return submissionError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(resp)
}

// Status devuelve el estado del comprobante frente a SUNAT y su último job.
// @Summary      Estado del envío
// @Tags         submission
// @Produce      json
// @Param        id  path  string  true  "ID del comprobante"
// @Success      200  {object}  dto.SubmissionStatusResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/documents/{id}/submission [get]
func (h *SubmissionHandler) Status(c *fiber.Ctx) error {
	storeID := GetStoreID(c)
	if storeID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	resp, err := h.uc.Status(c.Context(), storeID, c.Params("id"))
	if err != nil {
		return submissionError(c, err)
	}
	return c.JSON(resp)
}

// History lista los jobs de envío del comprobante.
// @Summary      Historial de envíos
// @Tags         submission
// @Produce      json
// @Param        id      path   string  true   "ID del comprobante"
// @Param        limit   query  int     false  "Límite"  default(20)
// @Param        offset  query  int     false  "Offset"  default(0)
// @Success      200  {object}  dto.SubmissionJobListResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/documents/{id}/submission/jobs [get]
func (h *SubmissionHandler) History(c *fiber.Ctx) error {
	storeID := GetStoreID(c)
	if storeID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	page := dto.PageRequest{
		Limit:  c.QueryInt("limit", 0),
		Offset: c.QueryInt("offset", 0),
	}
	resp, err := h.uc.History(c.Context(), storeID, c.Params("id"), page)
	if err != nil {
		return submissionError(c, err)
	}
	return c.JSON(resp)
}

func submissionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "datos inválidos"})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "comprobante no encontrado"})
	case errors.Is(err, domain.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "acceso denegado"})
	case errors.Is(err, domain.ErrInvalidState):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "INVALID_STATE", Message: "el comprobante no está en un estado que permita la operación"})
	case errors.Is(err, domain.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONFLICT", Message: "el comprobante cambió, vuelva a consultar"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"})
}
