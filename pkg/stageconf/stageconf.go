// Package stageconf loads the stage registry from a YAML file.
//
//	stages:
//	  mounted:
//	    type: serial
//	    jobs:
//	      - loadUser
//	      - jobType: stage
//	        name: seoFetch
package stageconf

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/ib-77/fetchpipe/pkg/pipeline"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "stages.schema.json"

type File struct {
	Stages map[string]pipeline.Stage `yaml:"stages"`
}

// Load reads and parses the stage file at path.
func Load(path string) (map[string]pipeline.Stage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stage file: %w", err)
	}
	stages, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return stages, nil
}

// Parse validates data against the stage file schema and decodes it.
func Parse(data []byte) (map[string]pipeline.Stage, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := validate(doc); err != nil {
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode stages: %w", err)
	}
	if f.Stages == nil {
		f.Stages = map[string]pipeline.Stage{}
	}
	return f.Stages, nil
}

func validate(doc any) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	// round trip through json so yaml scalars match what the validator expects
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("unmarshal document: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("stage file does not match schema: %w", err)
	}
	return nil
}
