package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// repositoryFile is the YAML layout of the --config file:
//
//	owner: acme
//	repositories:
//	  - api
//	  - other-org/lib
//	  - owner: acme
//	    name: web
type repositoryFile struct {
	Owner        string            `yaml:"owner"`
	Repositories []repositoryEntry `yaml:"repositories"`
}

// repositoryEntry accepts either a "name"/"owner/name" string or an
// owner/name mapping.
type repositoryEntry struct {
	Owner string `yaml:"owner"`
	Name  string `yaml:"name"`
}

func (e *repositoryEntry) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		e.Name = node.Value
		return nil
	case yaml.MappingNode:
		type plain repositoryEntry
		return node.Decode((*plain)(e))
	default:
		return fmt.Errorf("line %d: repository must be a string or a mapping", node.Line)
	}
}

// String renders the entry in the form accepted by ParseRepositories.
func (e repositoryEntry) String() string {
	if e.Owner == "" {
		return e.Name
	}
	return e.Owner + "/" + e.Name
}

func parseRepositoryFile(b []byte) (repositoryFile, error) {
	var file repositoryFile
	if err := yaml.Unmarshal(b, &file); err != nil {
		return repositoryFile{}, err
	}
	return file, nil
}
