package sunat

import (
	"fmt"
	"unicode"
)

// pesos del dígito verificador del RUC (módulo 11), aplicados a los 10 primeros dígitos.
var rucWeights = [10]int{5, 4, 3, 2, 7, 6, 5, 4, 3, 2}

// ValidateRUC valida longitud (11 dígitos), prefijo (10, 15, 16, 17, 20) y dígito verificador.
func ValidateRUC(ruc string) error {
	if len(ruc) != 11 {
		return fmt.Errorf("sunat: RUC debe tener 11 dígitos, tiene %d", len(ruc))
	}
	for _, r := range ruc {
		if !unicode.IsDigit(r) {
			return fmt.Errorf("sunat: RUC contiene caracteres no numéricos")
		}
	}
	switch ruc[:2] {
	case "10", "15", "16", "17", "20":
	default:
		return fmt.Errorf("sunat: prefijo de RUC %q inválido", ruc[:2])
	}
	var sum int
	for i, w := range rucWeights {
		sum += int(ruc[i]-'0') * w
	}
	check := 11 - sum%11
	switch check {
	case 10:
		check = 0
	case 11:
		check = 1
	}
	if int(ruc[10]-'0') != check {
		return fmt.Errorf("sunat: dígito verificador de RUC incorrecto (esperado %d)", check)
	}
	return nil
}
