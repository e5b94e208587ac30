package sunat

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// ErrInvalidCDR el contenedor de respuesta está vacío, corrupto o no es un ApplicationResponse.
// Se clasifica como transitorio: puede deberse a corrupción en el transporte.
var ErrInvalidCDR = errors.New("cdr: constancia inválida")

// CDRResult contenido relevante de la Constancia de Recepción.
type CDRResult struct {
	Accepted    bool
	Code        string   // cbc:ResponseCode
	Message     string   // cbc:Description
	Notes       []string // cbc:Note (observaciones 4000+)
	ReferenceID string   // serie-número al que responde
	XMLName     string   // nombre de la entrada dentro del ZIP (R-...xml)
}

// ParseCDR descomprime el ZIP del CDR y lee el ApplicationResponse UBL 2.0.
func ParseCDR(container []byte) (*CDRResult, error) {
	xmlBytes, name, err := ExtractFirstXML(container)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCDR, err)
	}

	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charsetReader
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("%w: parsear XML %s: %v", ErrInvalidCDR, name, err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "ApplicationResponse" {
		return nil, fmt.Errorf("%w: raíz inesperada en %s", ErrInvalidCDR, name)
	}

	codeEl := root.FindElement(".//DocumentResponse/Response/ResponseCode")
	if codeEl == nil || strings.TrimSpace(codeEl.Text()) == "" {
		return nil, fmt.Errorf("%w: sin ResponseCode en %s", ErrInvalidCDR, name)
	}
	res := &CDRResult{
		Code:    strings.TrimSpace(codeEl.Text()),
		XMLName: name,
	}
	if el := root.FindElement(".//DocumentResponse/Response/Description"); el != nil {
		res.Message = strings.TrimSpace(el.Text())
	}
	if el := root.FindElement(".//DocumentResponse/Response/ReferenceID"); el != nil {
		res.ReferenceID = strings.TrimSpace(el.Text())
	}
	for _, n := range root.SelectElements("Note") {
		if txt := strings.TrimSpace(n.Text()); txt != "" {
			res.Notes = append(res.Notes, txt)
		}
	}
	res.Accepted = acceptedCode(res.Code)
	return res, nil
}

// acceptedCode 0 = aceptado; 4000+ = aceptado con observaciones.
func acceptedCode(code string) bool {
	n, err := strconv.Atoi(code)
	if err != nil {
		return false
	}
	return n == 0 || n >= 4000
}

// charsetReader soporta CDRs declarados en ISO-8859-1.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	if strings.EqualFold(label, "ISO-8859-1") || strings.EqualFold(label, "ISO8859-1") || strings.EqualFold(label, "latin1") {
		return transform.NewReader(input, charmap.ISO8859_1.NewDecoder()), nil
	}
	return input, nil
}
