package stack

import (
	"fmt"
	"sort"
	"strings"
)

// Order returns service names so that every service follows its dependencies.
// Services without ordering constraints between them are sorted by name.
func (s *Stack) Order() ([]string, error) {
	indegree := make(map[string]int, len(s.Services))
	dependents := make(map[string][]string, len(s.Services))
	for name, svc := range s.Services {
		if _, ok := indegree[name]; !ok {
			indegree[name] = 0
		}
		for _, dep := range svc.DependsOn {
			if _, ok := s.Services[dep]; !ok || dep == name {
				continue
			}
			indegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	ready := make([]string, 0, len(indegree))
	for name, n := range indegree {
		if n == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(indegree))
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		for _, child := range dependents[next] {
			indegree[child]--
			if indegree[child] == 0 {
				ready = append(ready, child)
			}
		}
		sort.Strings(ready)
	}

	if len(order) != len(indegree) {
		var cyclic []string
		for name, n := range indegree {
			if n > 0 {
				cyclic = append(cyclic, name)
			}
		}
		sort.Strings(cyclic)
		return nil, fmt.Errorf("dependency cycle between services %s", strings.Join(cyclic, ", "))
	}
	return order, nil
}
