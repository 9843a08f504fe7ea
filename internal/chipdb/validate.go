package chipdb

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// deviceSchema constrains the shape of devices.yaml. Families need a
// non-empty name, at least one device, and at least one tile type; no
// other keys are allowed.
const deviceSchema = `
families!: [...close({
	name!:       string & !=""
	devices!:    [...string & !=""] & [_, ...]
	tile_types!: [...string & !=""] & [_, ...]
})]
`

// validateConfig checks a decoded device file against the schema
// before it is trusted to produce filesystem paths.
func validateConfig(raw map[string]any) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(deviceSchema, cue.Filename("devices-schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile device schema: %w", err)
	}

	value := ctx.Encode(raw)
	if err := value.Err(); err != nil {
		return fmt.Errorf("encode device file: %w", err)
	}

	if err := schema.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("device file does not match schema: %w", err)
	}
	return nil
}
