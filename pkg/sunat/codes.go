package sunat

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// CodeClass clasificación de un código de respuesta SUNAT.
type CodeClass string

const (
	CodeClassAccepted  CodeClass = "accepted"  // 0 o observaciones (>= 4000)
	CodeClassRejected  CodeClass = "rejected"  // rechazo de negocio, terminal
	CodeClassTransient CodeClass = "transient" // se reintenta con backoff
	CodeClassFatal     CodeClass = "fatal"     // fallo técnico, sin reintento
)

// CodeEntry entrada de la tabla de códigos.
type CodeEntry struct {
	Code    string    `yaml:"code"`
	Class   CodeClass `yaml:"class"`
	Message string    `yaml:"message"`
}

// CodeTable tabla código → (mensaje, clase). Es un dato de configuración:
// la lógica de clasificación solo la consulta.
type CodeTable struct {
	entries map[int]CodeEntry
}

//go:embed codes.yaml
var defaultCodesYAML []byte

type codesFile struct {
	Codes []CodeEntry `yaml:"codes"`
}

// DefaultCodeTable devuelve la tabla embebida en el binario.
func DefaultCodeTable() *CodeTable {
	t, err := ParseCodeTable(defaultCodesYAML)
	if err != nil {
		panic("sunat: tabla de códigos embebida inválida: " + err.Error())
	}
	return t
}

// LoadCodeTable lee la tabla desde path; con path vacío usa la embebida.
func LoadCodeTable(path string) (*CodeTable, error) {
	if path == "" {
		return DefaultCodeTable(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sunat: leer tabla de códigos: %w", err)
	}
	return ParseCodeTable(raw)
}

// ParseCodeTable decodifica la tabla en YAML.
func ParseCodeTable(raw []byte) (*CodeTable, error) {
	var f codesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("sunat: decodificar tabla de códigos: %w", err)
	}
	t := &CodeTable{entries: make(map[int]CodeEntry, len(f.Codes))}
	for _, e := range f.Codes {
		n, ok := codeNumber(e.Code)
		if !ok {
			return nil, fmt.Errorf("sunat: código %q no numérico", e.Code)
		}
		switch e.Class {
		case CodeClassAccepted, CodeClassRejected, CodeClassTransient, CodeClassFatal:
		default:
			return nil, fmt.Errorf("sunat: clase %q inválida para código %s", e.Class, e.Code)
		}
		t.entries[n] = e
	}
	return t, nil
}

// Len número de entradas cargadas.
func (t *CodeTable) Len() int { return len(t.entries) }

// Lookup busca el código ("0102" y "102" son equivalentes).
func (t *CodeTable) Lookup(code string) (CodeEntry, bool) {
	n, ok := codeNumber(code)
	if !ok {
		return CodeEntry{}, false
	}
	e, ok := t.entries[n]
	return e, ok
}

// Classify clasifica un código. Los que no están en la tabla caen en los rangos SUNAT:
// 0 y >= 4000 aceptado, 2000-3999 rechazo, 1-1999 fatal. Un código no numérico
// (fault genérico del servidor) se considera transitorio.
func (t *CodeTable) Classify(code string) CodeClass {
	if e, ok := t.Lookup(code); ok {
		return e.Class
	}
	n, ok := codeNumber(code)
	if !ok {
		return CodeClassTransient
	}
	switch {
	case n == 0 || n >= 4000:
		return CodeClassAccepted
	case n >= 2000:
		return CodeClassRejected
	default:
		return CodeClassFatal
	}
}

// Message mensaje legible del código, o fallback si no está en la tabla.
func (t *CodeTable) Message(code, fallback string) string {
	if e, ok := t.Lookup(code); ok {
		return e.Message
	}
	return fallback
}

func codeNumber(code string) (int, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return 0, false
	}
	n, err := strconv.Atoi(code)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
