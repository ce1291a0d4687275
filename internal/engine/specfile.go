package engine

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// SpecFile declares additional command-line engines in YAML:
//
//	engines:
//	  - name: easyocr
//	    command: easyocr
//	    args: ["-l", "en", "--detail", "0", "-f", "{image}"]
type SpecFile struct {
	Engines []CommandSpec `yaml:"engines"`
}

// CommandSpec is one command-engine declaration.
type CommandSpec struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// LoadSpecFile parses a YAML engine spec file into Command engines.
func LoadSpecFile(path string) ([]Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "engine: read spec file %s", path)
	}

	var spec SpecFile
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, eris.Wrapf(err, "engine: parse spec file %s", path)
	}

	engines := make([]Engine, 0, len(spec.Engines))
	seen := make(map[string]bool)
	for _, cs := range spec.Engines {
		if cs.Name == "" || cs.Command == "" {
			return nil, eris.Errorf("engine: spec file %s: every engine needs a name and a command", path)
		}
		if seen[cs.Name] {
			return nil, eris.Errorf("engine: spec file %s: duplicate engine %q", path, cs.Name)
		}
		seen[cs.Name] = true
		engines = append(engines, NewCommand(cs.Name, cs.Command, cs.Args))
	}
	return engines, nil
}
