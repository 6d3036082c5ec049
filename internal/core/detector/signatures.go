package detector

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed signatures.yaml
var defaultSignatures []byte

// Signature ties a processor name to the keywords that identify its statements.
type Signature struct {
	Processor string   `yaml:"processor"`
	Keywords  []string `yaml:"keywords"`
}

type signatureFile struct {
	Signatures []Signature `yaml:"signatures"`
}

// LoadSignatures reads an ordered signature table from path, or the embedded
// default when path is empty.
func LoadSignatures(path string) ([]Signature, error) {
	data := defaultSignatures
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read signatures %s: %w", path, err)
		}
		data = raw
	}
	return ParseSignatures(data)
}

func ParseSignatures(data []byte) ([]Signature, error) {
	var file signatureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode signatures: %w", err)
	}
	if len(file.Signatures) == 0 {
		return nil, fmt.Errorf("decode signatures: no signatures defined")
	}
	for i, sig := range file.Signatures {
		if strings.TrimSpace(sig.Processor) == "" {
			return nil, fmt.Errorf("signature %d: processor is required", i)
		}
		if len(sig.Keywords) == 0 {
			return nil, fmt.Errorf("signature %q: at least one keyword is required", sig.Processor)
		}
		for j, kw := range sig.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				return nil, fmt.Errorf("signature %q: keyword %d is empty", sig.Processor, j)
			}
			file.Signatures[i].Keywords[j] = kw
		}
	}
	return file.Signatures, nil
}
