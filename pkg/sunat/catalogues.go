// Package sunat contiene catálogos, tablas de códigos de respuesta y validaciones
// alineados a la facturación electrónica SUNAT (Perú), SEE-Del contribuyente.
package sunat

// =============================================================================
// Catálogo 01 - Tipo de documento
// =============================================================================

const (
	DocTypeFactura     = "01" // Factura
	DocTypeBoleta      = "03" // Boleta de venta
	DocTypeNotaCredito = "07" // Nota de crédito
	DocTypeNotaDebito  = "08" // Nota de débito
)

// ValidDocTypeCodes códigos de tipo de documento aceptados por el pipeline.
var ValidDocTypeCodes = map[string]bool{
	DocTypeFactura: true, DocTypeBoleta: true, DocTypeNotaCredito: true, DocTypeNotaDebito: true,
}

// =============================================================================
// Estados de getStatus (consulta de ticket)
// =============================================================================

const (
	TicketStatusProcessed  = "0"  // Procesó correctamente, content = CDR
	TicketStatusInProgress = "98" // En proceso
	TicketStatusWithErrors = "99" // Procesó con errores (content = CDR de rechazo si existe)
)

// =============================================================================
// Endpoints billService
// =============================================================================

const (
	EndpointBeta       = "https://e-beta.sunat.gob.pe/ol-ti-itcpfegem-beta/billService"
	EndpointProduction = "https://e-factura.sunat.gob.pe/ol-ti-itcpfegem/billService"
)
