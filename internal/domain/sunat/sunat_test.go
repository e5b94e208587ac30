package sunat_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/sunat"
	pkgsunat "github.com/Cristhianmcc/marketPOS-sub004/pkg/sunat"
)

// ──────────────────────────────────────────────────────────────────────────────
// Tabla de reintentos
// ──────────────────────────────────────────────────────────────────────────────

func TestBackoff_TablaFija(t *testing.T) {
	want := []time.Duration{time.Minute, 5 * time.Minute, 15 * time.Minute, time.Hour, 2 * time.Hour}
	for i, w := range want {
		got, ok := sunat.Backoff(i + 1)
		assert.True(t, ok, "intento %d debe tener espera", i+1)
		assert.Equal(t, w, got, "intento %d", i+1)
	}
}

func TestBackoff_FueraDeRango(t *testing.T) {
	_, ok := sunat.Backoff(sunat.MaxAttempts + 1)
	assert.False(t, ok, "superar el tope debe ser terminal")
	_, ok = sunat.Backoff(0)
	assert.False(t, ok)
}

func TestTotalBackoff_201Minutos(t *testing.T) {
	assert.Equal(t, 201*time.Minute, sunat.TotalBackoff())
}

// ──────────────────────────────────────────────────────────────────────────────
// Clasificación
// ──────────────────────────────────────────────────────────────────────────────

func TestClassifyCode(t *testing.T) {
	table := pkgsunat.DefaultCodeTable()
	assert.Equal(t, sunat.OutcomeAccepted, sunat.ClassifyCode(table, "0"))
	assert.Equal(t, sunat.OutcomeAccepted, sunat.ClassifyCode(table, "4000"))
	assert.Equal(t, sunat.OutcomeRejected, sunat.ClassifyCode(table, "2335"))
	assert.Equal(t, sunat.OutcomeTransient, sunat.ClassifyCode(table, "0109"))
	assert.Equal(t, sunat.OutcomeFatal, sunat.ClassifyCode(table, "0104"))
	assert.Equal(t, "rejected", sunat.OutcomeRejected.String())
	assert.Equal(t, "deferred", sunat.Deferred("apagado").Kind.String())
}

// ──────────────────────────────────────────────────────────────────────────────
// Saneamiento
// ──────────────────────────────────────────────────────────────────────────────

func TestSanitizeMessage_OcultaSecretos(t *testing.T) {
	msg := sunat.SanitizeMessage("auth fallida user=20100066603MODDATOS pass=moddatos\n reintentar", "moddatos", "")
	assert.NotContains(t, msg, "moddatos")
	assert.Contains(t, msg, "***")
	assert.NotContains(t, msg, "\n")
}

func TestSanitizeMessage_Trunca(t *testing.T) {
	msg := sunat.SanitizeMessage(strings.Repeat("á", 2000))
	assert.Equal(t, sunat.MaxMessageLen, len([]rune(msg)))
	assert.True(t, strings.HasSuffix(msg, "..."))
}
