package bml

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// labelFile is the on-disk shape of a label definitions file.
type labelFile struct {
	Labels []LabelDef `yaml:"labels"`
}

// LoadLabelDefs reads label definitions from a YAML file. Entries with
// an empty name are rejected; entries without a color fall back to the
// built-in color when the name matches a default label, else gray.
func LoadLabelDefs(path string) ([]LabelDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read label definitions: %w", err)
	}

	var f labelFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse label definitions: %w", err)
	}
	if len(f.Labels) == 0 {
		return nil, fmt.Errorf("no labels defined in %s", path)
	}

	defaults := make(map[string]LabelDef)
	for _, d := range DefaultLabelDefs() {
		defaults[d.Name] = d
	}

	for i, d := range f.Labels {
		if d.Name == "" {
			return nil, fmt.Errorf("label %d in %s has no name", i, path)
		}
		if d.Color == "" {
			if def, ok := defaults[d.Name]; ok {
				f.Labels[i].Color = def.Color
			} else {
				f.Labels[i].Color = "cccccc"
			}
		}
	}

	return f.Labels, nil
}
