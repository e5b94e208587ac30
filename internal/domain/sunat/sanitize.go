package sunat

import (
	"strings"
	"unicode/utf8"
)

// MaxMessageLen longitud máxima de lastError y mensajes de auditoría.
const MaxMessageLen = 500

// GenericFailureCode código expuesto hacia afuera para fallos técnicos fatales.
const GenericFailureCode = "INTERNAL_FAILURE"

// SanitizeMessage reemplaza cada secreto por "***", colapsa saltos de línea y trunca a
// MaxMessageLen runas. Se aplica a todo lo que se persiste en lastError o se audita.
func SanitizeMessage(msg string, secrets ...string) string {
	for _, s := range secrets {
		if s == "" {
			continue
		}
		msg = strings.ReplaceAll(msg, s, "***")
	}
	msg = strings.Join(strings.Fields(msg), " ")
	if utf8.RuneCountInString(msg) > MaxMessageLen {
		runes := []rune(msg)
		msg = string(runes[:MaxMessageLen-3]) + "..."
	}
	return msg
}
