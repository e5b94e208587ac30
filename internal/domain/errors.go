package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrDuplicate    = errors.New("recurso duplicado")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")
	ErrConflict     = errors.New("conflicto con el estado actual")

	// ErrInvalidState: el documento no está en un estado que permita la operación (ej. encolar sin SIGNED).
	ErrInvalidState = errors.New("estado inválido para la operación")
	// ErrInvalidTransition: transición no permitida por la máquina de estados.
	ErrInvalidTransition = errors.New("transición de estado no permitida")
	// ErrLeaseLost: el job ya no pertenece a este worker (lease expirado y reclamado por otro).
	ErrLeaseLost = errors.New("lease del job perdido")
)
