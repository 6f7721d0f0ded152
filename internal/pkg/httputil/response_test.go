package httputil

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttachmentASCIIName(t *testing.T) {
	rr := httptest.NewRecorder()
	Attachment(rr, "text/csv; charset=utf-8", `telefonos_"promo"_2026-10-16.csv`)

	assert.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="telefonos_promo_2026-10-16.csv"`, rr.Header().Get("Content-Disposition"))
}

func TestAttachmentNonASCIIName(t *testing.T) {
	rr := httptest.NewRecorder()
	Attachment(rr, "text/csv", "campañas_analitica_2026-10-16.csv")

	assert.Equal(t,
		`attachment; filename="campanas_analitica_2026-10-16.csv"; filename*=UTF-8''campa%C3%B1as_analitica_2026-10-16.csv`,
		rr.Header().Get("Content-Disposition"))
}

func TestASCIIFallbackReplacesNonLatin(t *testing.T) {
	assert.Equal(t, "promo__.csv", asciiFallback("promo日本.csv"))
	assert.Equal(t, "Exportacion.csv", asciiFallback("Exportación.csv"))
}
