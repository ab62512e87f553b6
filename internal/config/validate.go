package config

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource []byte

// Validate checks cfg against the embedded CUE schema.
func Validate(cfg *Config) error {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaSource)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("config schema: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := cueyaml.Validate(data, def); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
