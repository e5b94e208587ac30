package sunat

import (
	pkgsunat "github.com/Cristhianmcc/marketPOS-sub004/pkg/sunat"
)

// OutcomeKind cubeta a la que pertenece el resultado de procesar un job.
type OutcomeKind int

const (
	OutcomeAccepted  OutcomeKind = iota + 1 // CDR aceptado (con o sin observaciones)
	OutcomeRejected                         // rechazo de negocio, terminal
	OutcomeTransient                        // red, timeout, "en proceso", 5xx, CDR corrupto
	OutcomeFatal                            // credenciales, programación, datos faltantes
	OutcomeDeferred                         // worker detenido a mitad del intento: vuelve a la cola sin consumir intento
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeRejected:
		return "rejected"
	case OutcomeTransient:
		return "transient"
	case OutcomeFatal:
		return "fatal"
	case OutcomeDeferred:
		return "deferred"
	}
	return "unknown"
}

// Outcome resultado clasificado de un intento de envío.
type Outcome struct {
	Kind    OutcomeKind
	Code    string // código SUNAT si lo hubo
	Message string // mensaje para el documento o lastError (sin sanear)
	Notes   []string
	Ack     []byte // ZIP del CDR cuando existe
}

// KindFromClass traduce la clase de la tabla de códigos a la cubeta del pipeline.
func KindFromClass(c pkgsunat.CodeClass) OutcomeKind {
	switch c {
	case pkgsunat.CodeClassAccepted:
		return OutcomeAccepted
	case pkgsunat.CodeClassRejected:
		return OutcomeRejected
	case pkgsunat.CodeClassTransient:
		return OutcomeTransient
	}
	return OutcomeFatal
}

// ClassifyCode clasifica un código SUNAT (de CDR o de fault) según la tabla.
func ClassifyCode(table *pkgsunat.CodeTable, code string) OutcomeKind {
	return KindFromClass(table.Classify(code))
}

// Transient construye un resultado transitorio.
func Transient(msg string) Outcome {
	return Outcome{Kind: OutcomeTransient, Message: msg}
}

// Fatal construye un resultado fatal.
func Fatal(msg string) Outcome {
	return Outcome{Kind: OutcomeFatal, Message: msg}
}

// Deferred construye un resultado diferido: el intento se abandona sin contar.
func Deferred(msg string) Outcome {
	return Outcome{Kind: OutcomeDeferred, Message: msg}
}
