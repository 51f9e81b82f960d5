package pipeline

import (
	"fmt"
	"strings"
)

// Plan groups steps into levels. Every step depends only on steps of
// earlier levels, so the steps of one level can run concurrently. Steps keep
// their file order within a level.
func (p *Pipeline) Plan() ([][]Step, error) {
	index := make(map[string]int, len(p.Steps))
	for i, step := range p.Steps {
		if _, dup := index[step.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate step %q", ErrInvalidPipeline, step.Name)
		}
		if _, clash := p.Context[step.Name]; clash {
			return nil, fmt.Errorf("%w: step %q shadows a context key", ErrInvalidPipeline, step.Name)
		}
		index[step.Name] = i
	}

	deps := make([][]int, len(p.Steps))
	for i, step := range p.Steps {
		for _, input := range step.Inputs {
			if j, ok := index[input]; ok {
				deps[i] = append(deps[i], j)
				continue
			}
			if _, ok := p.Context[input]; !ok {
				return nil, fmt.Errorf("%w: step %q reads unknown input %q", ErrInvalidPipeline, step.Name, input)
			}
		}
	}

	level := make([]int, len(p.Steps))
	for i := range level {
		level[i] = -1
	}
	const visiting = -2
	var depth func(i int, path []string) (int, error)
	depth = func(i int, path []string) (int, error) {
		switch level[i] {
		case visiting:
			return 0, fmt.Errorf("%w: cycle %s", ErrInvalidPipeline, strings.Join(append(path, p.Steps[i].Name), " -> "))
		case -1:
		default:
			return level[i], nil
		}
		level[i] = visiting
		d := 0
		for _, j := range deps[i] {
			dj, err := depth(j, append(path, p.Steps[i].Name))
			if err != nil {
				return 0, err
			}
			if dj+1 > d {
				d = dj + 1
			}
		}
		level[i] = d
		return d, nil
	}

	var levels [][]Step
	for i := range p.Steps {
		d, err := depth(i, nil)
		if err != nil {
			return nil, err
		}
		for len(levels) <= d {
			levels = append(levels, nil)
		}
	}
	for i, step := range p.Steps {
		levels[level[i]] = append(levels[level[i]], step)
	}
	return levels, nil
}
