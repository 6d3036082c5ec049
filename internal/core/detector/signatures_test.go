package detector

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedSignaturesOrder(t *testing.T) {
	signatures, err := LoadSignatures("")
	require.NoError(t, err)

	names := make([]string, 0, len(signatures))
	for _, sig := range signatures {
		names = append(names, sig.Processor)
	}
	assert.Equal(t, []string{"Chase Paymentech", "Clover", "Square", "Stripe", "Moneris"}, names)
}

func TestParseSignaturesLowercasesKeywords(t *testing.T) {
	signatures, err := ParseSignatures([]byte(`
signatures:
  - processor: Acme Pay
    keywords: ["  ACME Payments ", "acmepay"]
`))
	require.NoError(t, err)
	require.Len(t, signatures, 1)
	assert.Equal(t, []string{"acme payments", "acmepay"}, signatures[0].Keywords)
}

func TestParseSignaturesRejectsInvalidTables(t *testing.T) {
	cases := map[string]string{
		"empty":         "signatures: []",
		"no processor":  "signatures:\n  - keywords: [x]",
		"no keywords":   "signatures:\n  - processor: Acme",
		"blank keyword": "signatures:\n  - processor: Acme\n    keywords: [\" \"]",
		"not yaml":      "signatures: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSignatures([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadSignaturesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signatures.yaml")
	require.NoError(t, os.WriteFile(path, []byte("signatures:\n  - processor: Chase Paymentech\n    keywords: [paymentech]\n"), 0o600))

	signatures, err := LoadSignatures(path)
	require.NoError(t, err)
	assert.Equal(t, "Chase Paymentech", signatures[0].Processor)

	_, err = LoadSignatures(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
