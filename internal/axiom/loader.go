package axiom

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/axiomhive/axiomd/internal/crypto"
)

type setFile struct {
	Axioms []Axiom `yaml:"axioms"`
}

// Load reads a YAML axiom definition file, validates it, and computes the
// set hash over the raw bytes.
func Load(path string) (Set, error) {
	// #nosec G304 -- path comes from operator-configured axioms path.
	data, err := os.ReadFile(path)
	if err != nil {
		return Set{}, err
	}
	return Parse(data)
}

// Parse builds a Set from raw YAML bytes.
func Parse(data []byte) (Set, error) {
	var file setFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Set{}, fmt.Errorf("parse axioms: %w", err)
	}
	if len(file.Axioms) == 0 {
		return Set{}, fmt.Errorf("axiom set is empty")
	}
	if err := Validate(file.Axioms); err != nil {
		return Set{}, err
	}

	return Set{
		Axioms: file.Axioms,
		Hash:   crypto.DigestWithPrefix(data),
	}, nil
}
