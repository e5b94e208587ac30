// Package sunat contiene las reglas de dominio del pipeline de envío a SUNAT:
// tabla de reintentos, clasificación de resultados y saneamiento de mensajes.
package sunat

import "time"

// MaxAttempts tope de intentos transitorios; al superarlo el job pasa a FAILED.
const MaxAttempts = 5

// backoffTable espera antes del siguiente intento, indexada por número de intento
// (1-indexado, después de incrementar). Es una tabla fija, no una fórmula.
var backoffTable = [MaxAttempts]time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	60 * time.Minute,
	120 * time.Minute,
}

// Backoff devuelve la espera para el intento attempt. ok=false si attempt supera el
// tope (el job debe terminar en FAILED) o es menor que 1.
func Backoff(attempt int) (delay time.Duration, ok bool) {
	if attempt < 1 || attempt > MaxAttempts {
		return 0, false
	}
	return backoffTable[attempt-1], true
}

// TotalBackoff suma de todas las esperas de la tabla (201 minutos).
func TotalBackoff() time.Duration {
	var total time.Duration
	for _, d := range backoffTable {
		total += d
	}
	return total
}
