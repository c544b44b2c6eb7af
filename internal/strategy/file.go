package strategy

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jonlambert/deliver/internal/template"
)

// fileStep is one step of a project-local strategy file.
type fileStep struct {
	Name            string `yaml:"name"`
	Run             string `yaml:"run"`
	Local           bool   `yaml:"local"`
	ContinueOnError bool   `yaml:"continue_on_error"`
}

// strategyFile is the on-disk shape of a project-local strategy.
type strategyFile struct {
	Description string     `yaml:"description"`
	Steps       []fileStep `yaml:"steps"`
}

// LoadFile parses a project-local strategy file into a Strategy. Each step
// becomes either a local dispatch or a fan-out over all hosts; remote
// commands are templates rendered per host at dispatch time.
func LoadFile(name, path string) (*Strategy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading strategy file %s: %w", path, err)
	}

	var sf strategyFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parsing strategy file %s: %w", path, err)
	}
	if len(sf.Steps) == 0 {
		return nil, fmt.Errorf("strategy file %s declares no steps", path)
	}

	steps := make([]Step, 0, len(sf.Steps))
	for i, fs := range sf.Steps {
		if fs.Run == "" {
			return nil, fmt.Errorf("strategy file %s: step %d has no run command", path, i+1)
		}
		if err := template.Validate(fs.Run); err != nil {
			return nil, fmt.Errorf("strategy file %s: step %d: %w", path, i+1, err)
		}

		label := fs.Name
		if label == "" {
			label = fmt.Sprintf("step %d", i+1)
		}

		steps = append(steps, newFileStep(label, fs))
	}

	return &Strategy{Name: name, Steps: steps}, nil
}

func newFileStep(label string, fs fileStep) Step {
	command := fs.Run
	local := fs.Local
	return Step{
		Name:            label,
		ContinueOnError: fs.ContinueOnError,
		Run: func(ctx context.Context, rt *Runtime) error {
			if local {
				rendered, err := template.Render(command, localContext(rt))
				if err != nil {
					return err
				}
				return rt.Dispatcher.Local(ctx, label, rendered)
			}
			return rt.Dispatcher.Remote(ctx, label, command, rt.Hosts)
		},
	}
}

// localContext renders local commands against the run configuration with
// no particular target host.
func localContext(rt *Runtime) template.Context {
	return template.Context{
		User:       rt.Cfg.User,
		App:        rt.Cfg.App,
		Branch:     rt.Cfg.Branch,
		Supervisor: rt.Cfg.Supervisor,
	}
}
