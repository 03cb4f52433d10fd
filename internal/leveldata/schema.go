package leveldata

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/samdwyer/stealthgrid/internal/grid"
)

// Schema returns the JSON schema of the layout input format.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
	}
	schema := reflector.Reflect(new(grid.Layout))
	schema.Title = "Stealthgrid Layout"
	schema.Description = "Authored level layout: walls, start and exit, objectives, guard patrols and hazards."
	return schema
}

// SchemaJSON returns the layout schema as indented JSON.
func SchemaJSON() ([]byte, error) {
	data, err := json.MarshalIndent(Schema(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return append(data, '\n'), nil
}
