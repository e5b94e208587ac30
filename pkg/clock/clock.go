// Package clock abstrae el tiempo para poder probar leases y backoff de forma determinista.
package clock

import "time"

// Clock abstrae las funciones de tiempo usadas por el pipeline.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// Real implementa Clock con la librería estándar.
type Real struct{}

// Now devuelve la hora actual en UTC.
func (Real) Now() time.Time {
	return time.Now().UTC()
}

// After equivale a time.After.
func (Real) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
