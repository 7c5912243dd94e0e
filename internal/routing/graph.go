// Package routing holds the pure graph logic for an order's routing steps:
// shape validation and dependency cycle detection. It never touches storage.
package routing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stitchworks/api/internal/apperr"
	"github.com/stitchworks/api/internal/model"
)

// Validate checks a proposed step list for one order. Checks run in order
// and fail fast: missing fields, duplicate sequences, unknown dependencies,
// then dependency cycles. No side effects.
func Validate(steps []model.RoutingStepRequest) error {
	for i, s := range steps {
		if strings.TrimSpace(s.Name) == "" || strings.TrimSpace(s.Workcenter) == "" || s.Sequence == nil {
			label := s.Name
			if label == "" {
				label = fmt.Sprintf("#%d", i+1)
			}
			return apperr.Validation(apperr.CodeMissingField,
				fmt.Sprintf("step %s is missing a name, workcenter or sequence", label),
				map[string]interface{}{"step": label})
		}
	}

	seqOwner := make(map[int]string, len(steps))
	for _, s := range steps {
		if prev, ok := seqOwner[*s.Sequence]; ok {
			return apperr.Validation(apperr.CodeDuplicateSequence,
				fmt.Sprintf("sequence %d is used by both %q and %q", *s.Sequence, prev, s.Name),
				map[string]interface{}{"sequence": *s.Sequence, "steps": []string{prev, s.Name}})
		}
		seqOwner[*s.Sequence] = s.Name
	}

	deps := make(map[string][]string, len(steps))
	for _, s := range steps {
		deps[s.Name] = s.DependsOn
	}
	for _, s := range steps {
		for _, d := range s.DependsOn {
			if _, ok := deps[d]; !ok {
				return apperr.Validation(apperr.CodeUnknownDependency,
					fmt.Sprintf("step %q depends on unknown step %q", s.Name, d),
					map[string]interface{}{"step": s.Name, "depends_on": d})
			}
		}
	}

	if cycle := FindCycle(deps); len(cycle) > 0 {
		return apperr.Validation(apperr.CodeCycleDetected,
			fmt.Sprintf("routing steps form a dependency cycle: %s", strings.Join(cycle, " -> ")),
			map[string]interface{}{"steps": cycle})
	}

	return nil
}

type color uint8

const (
	unvisited color = iota
	inProgress
	finished
)

// FindCycle runs a depth-first search over the dependency relation with
// three-color marking per node, so a finished node reached again from a
// different branch (a diamond) is not mistaken for a cycle. Only an edge
// into an in-progress node is one. Returns the steps on the first cycle
// found, or nil. A cycle over depends_on edges is the same node set as a
// cycle over the dependency->dependent edges, so traversal follows
// depends_on directly.
func FindCycle(deps map[string][]string) []string {
	colors := make(map[string]color, len(deps))
	var stack []string
	var cycle []string

	var visit func(name string) bool
	visit = func(name string) bool {
		colors[name] = inProgress
		stack = append(stack, name)
		for _, dep := range deps[name] {
			switch colors[dep] {
			case inProgress:
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == dep {
						cycle = append([]string(nil), stack[i:]...)
						break
					}
				}
				return true
			case unvisited:
				if visit(dep) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		colors[name] = finished
		return false
	}

	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if colors[name] == unvisited && visit(name) {
			return cycle
		}
	}
	return nil
}
