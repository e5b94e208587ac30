// Package sunat implementa la entrega de comprobantes al servicio billService de SUNAT:
// empaquetado ZIP, cliente SOAP y lectura del CDR.
package sunat

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
)

// SummaryTypeCode prefijo de los resúmenes diarios (sendSummary).
const SummaryTypeCode = "RC"

// archiveModTime fecha fija de las entradas: el mismo XML produce siempre el mismo ZIP.
var archiveModTime = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// maxEntrySize límite al descomprimir entradas recibidas (CDR).
const maxEntrySize = 10 << 20

// ErrEmptyArchive contenedor vacío o sin entradas.
var ErrEmptyArchive = errors.New("zip: contenedor sin entradas")

// BuildArchive empaqueta el XML firmado en un ZIP en memoria con una única entrada.
// SUNAT exige que el ZIP contenga un solo archivo con el nombre:
//
//	{RUC}-{TIPO}-{SERIE}-{NUMERO}.xml
func BuildArchive(content []byte, name string) ([]byte, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("zip: contenido vacío para %s", name)
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("zip: nombre de entrada vacío")
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	fw, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: archiveModTime,
	})
	if err != nil {
		return nil, fmt.Errorf("zip: crear entrada %s: %w", name, err)
	}
	if _, err := fw.Write(content); err != nil {
		return nil, fmt.Errorf("zip: escribir XML: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: cerrar archivo: %w", err)
	}
	return buf.Bytes(), nil
}

// ExtractFirstXML devuelve el contenido y nombre de la primera entrada .xml del ZIP; si no
// hay ninguna, la primera entrada que no sea directorio. Es la operación inversa de
// BuildArchive y se usa para abrir el CDR.
func ExtractFirstXML(container []byte) ([]byte, string, error) {
	if len(container) == 0 {
		return nil, "", ErrEmptyArchive
	}
	zr, err := zip.NewReader(bytes.NewReader(container), int64(len(container)))
	if err != nil {
		return nil, "", fmt.Errorf("zip: abrir contenedor: %w", err)
	}
	var chosen *zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(f.Name), ".xml") {
			chosen = f
			break
		}
		if chosen == nil {
			chosen = f
		}
	}
	if chosen == nil {
		return nil, "", ErrEmptyArchive
	}
	rc, err := chosen.Open()
	if err != nil {
		return nil, "", fmt.Errorf("zip: abrir %s: %w", chosen.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
	if err != nil {
		return nil, "", fmt.Errorf("zip: leer %s: %w", chosen.Name, err)
	}
	if len(data) > maxEntrySize {
		return nil, "", fmt.Errorf("zip: entrada %s excede %d bytes", chosen.Name, maxEntrySize)
	}
	return data, chosen.Name, nil
}

// Filenames genera los nombres del XML y del ZIP según la convención SUNAT.
// Ejemplo: 20100066603-01-F001-123
func Filenames(ruc, typeCode, series string, number int64) (xmlName, zipName string) {
	base := strings.Join([]string{
		strings.TrimSpace(ruc),
		strings.TrimSpace(typeCode),
		strings.TrimSpace(series),
		strconv.FormatInt(number, 10),
	}, "-")
	return base + ".xml", base + ".zip"
}

// CDRFilename nombre del ZIP de respuesta para un ZIP enviado (prefijo "R-").
func CDRFilename(zipName string) string {
	return "R-" + zipName
}
