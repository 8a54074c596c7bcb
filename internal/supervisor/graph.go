package supervisor

import (
	"fmt"

	"github.com/loykin/healthgate/internal/service"
)

// topoSort orders descriptors so every service appears after all of its
// dependencies. Unknown dependencies and cycles are configuration errors.
func topoSort(descs []service.Descriptor) ([]service.Descriptor, error) {
	byName := make(map[string]service.Descriptor, len(descs))
	for _, d := range descs {
		if _, dup := byName[d.Name]; dup {
			return nil, fmt.Errorf("duplicate service %s", d.Name)
		}
		byName[d.Name] = d
	}
	for _, d := range descs {
		for _, dep := range d.DependsOn {
			if _, ok := byName[dep]; !ok {
				return nil, fmt.Errorf("service %s depends on unknown service %s", d.Name, dep)
			}
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	mark := make(map[string]int, len(descs))
	out := make([]service.Descriptor, 0, len(descs))

	var visit func(name string) error
	visit = func(name string) error {
		switch mark[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("dependency cycle through service %s", name)
		}
		mark[name] = visiting
		for _, dep := range byName[name].DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}
		mark[name] = done
		out = append(out, byName[name])
		return nil
	}

	// iterate the input order so independent services keep their file order
	for _, d := range descs {
		if err := visit(d.Name); err != nil {
			return nil, err
		}
	}
	return out, nil
}
