package plan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLSource reads plans from a YAML document of the form
//
//	plans:
//	  - code: STARTER
//	    tier: 1
//	    monthly_price: "0"
//	    max_contacts: 500
//	    active: true
//
// Plans without active: true load but are hidden from Catalog.List.
type YAMLSource struct {
	Path string
	Data []byte // used instead of Path when non-empty
}

type yamlCatalog struct {
	Plans []Plan `yaml:"plans"`
}

func (s YAMLSource) Load(ctx context.Context) ([]Plan, error) {
	data := s.Data
	if len(data) == 0 {
		if s.Path == "" {
			return nil, errors.New("plan: yaml source has neither path nor data")
		}
		b, err := os.ReadFile(s.Path)
		if err != nil {
			return nil, fmt.Errorf("read plans file: %w", err)
		}
		data = b
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc yamlCatalog
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode plans yaml: %w", err)
	}
	for i := range doc.Plans {
		if doc.Plans[i].Currency == "" {
			doc.Plans[i].Currency = DefaultCurrency
		}
	}
	return doc.Plans, nil
}
