package entity

import "time"

// Store tienda/tenant emisor de comprobantes (multi-tenant, enfoque Perú).
type Store struct {
	ID          string
	Name        string
	RUC         string // RUC del emisor (11 dígitos), usado en nombres de archivo y usuario SOL
	SolUser     string // Usuario secundario SOL
	SolPassword string // Clave SOL: nunca se registra en logs ni auditoría
	Status      string // active, suspended, inactive
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SolUsername usuario WS-Security que exige SUNAT: RUC + usuario SOL.
func (s *Store) SolUsername() string {
	return s.RUC + s.SolUser
}
