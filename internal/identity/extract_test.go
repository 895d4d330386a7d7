package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectCompanyName_LabeledLine(t *testing.T) {
	text := "Our Company Name: Acme Corp\nWe have a written OHS policy covering all sites."
	assert.Equal(t, "Acme Corp", DetectCompanyName(text))
}

func TestDetectCompanyName_SupplierLabel(t *testing.T) {
	text := "Audit pack 2026\nSupplier: Metro Telworks Pte Ltd\nQuestion 3 evidence"
	assert.Equal(t, "Metro Telworks Pte Ltd", DetectCompanyName(text))
}

func TestDetectCompanyName_LegalEntityLeadToken(t *testing.T) {
	text := "Dokumen resmi\nPT Sumber Makmur\nJakarta, Indonesia"
	assert.Equal(t, "PT Sumber Makmur", DetectCompanyName(text))
}

func TestDetectCompanyName_FirstAlphabeticLine(t *testing.T) {
	text := "2026-01-15\nRef 44-A\nGlobal Widgets\nInvoice total 1200"
	assert.Equal(t, "Global Widgets", DetectCompanyName(text))
}

func TestDetectCompanyName_FallsBackToFirstNonEmptyLine(t *testing.T) {
	text := "\n\n  44-A certificate  \nref. 9921-X"
	assert.Equal(t, "44-A certificate", DetectCompanyName(text))
}

func TestDetectCompanyName_Empty(t *testing.T) {
	assert.Equal(t, "", DetectCompanyName("   \n\n  "))
}
