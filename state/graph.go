package state

import (
	"fmt"
	"slices"
	"strings"
)

/*
ParseGraph expands a compact link syntax into router pairs:

	core = r1, r2, r3   // defines a group
	edge = r4, r5
	core, core          // full mesh within core
	core, edge, r6      // every member of each term is linked to every member of the others
	r7, r8              // a single link

routers is the set of terminal names the graph evaluates down to.
*/
func ParseGraph(graph []string, routers []string) ([]Pair[RouterId, RouterId], error) {
	symbols := slices.Clone(routers)
	for _, line := range graph {
		line = normalizeLine(line)
		grp, _, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		if strings.Count(line, "=") != 1 {
			return nil, fmt.Errorf("invalid graph: %s. group definition must contain one '='", line)
		}
		grp = strings.TrimSpace(grp)
		if slices.Contains(routers, grp) {
			return nil, fmt.Errorf("group name must not be a router name: %s", grp)
		}
		symbols = append(symbols, grp)
	}
	slices.Sort(symbols)
	symbols = slices.Compact(symbols)

	// group -> direct router members, and group -> groups it references
	members := make(map[string][]string)
	deps := make(map[string][]string)
	terms := make([]Pair[string, string], 0)

	for _, line := range graph {
		line = normalizeLine(line)
		if line == "" {
			continue
		}
		if grp, rest, ok := strings.Cut(line, "="); ok {
			grp = strings.TrimSpace(grp)
			if _, dup := deps[grp]; dup {
				return nil, fmt.Errorf("duplicate group name: %s", grp)
			}
			lst, err := parseSymbolList(rest, symbols)
			if err != nil {
				return nil, err
			}
			deps[grp] = []string{}
			for _, s := range lst {
				if slices.Contains(routers, s) {
					members[grp] = append(members[grp], s)
				} else {
					deps[grp] = append(deps[grp], s)
				}
			}
			continue
		}
		names, err := parseSymbolList(line, symbols)
		if err != nil {
			return nil, err
		}
		if len(names) < 2 {
			return nil, fmt.Errorf("invalid pairing, %v", names)
		}
		for i := range names {
			for j := range i {
				terms = append(terms, MakeSortedPair(names[j], names[i]))
			}
		}
	}

	if err := expandGroups(members, deps); err != nil {
		return nil, err
	}

	resolve := func(s string) []RouterId {
		if slices.Contains(routers, s) {
			return []RouterId{RouterId(s)}
		}
		out := make([]RouterId, 0, len(members[s]))
		for _, m := range members[s] {
			out = append(out, RouterId(m))
		}
		return out
	}

	pairs := make([]Pair[RouterId, RouterId], 0)
	for _, term := range terms {
		for _, x := range resolve(term.V1) {
			for _, y := range resolve(term.V2) {
				if x != y {
					pairs = append(pairs, MakeSortedPair(x, y))
				}
			}
		}
	}
	SortPairs(pairs)
	return slices.Compact(pairs), nil
}

// expandGroups resolves nested groups in dependency order, rejecting cycles.
func expandGroups(members, deps map[string][]string) error {
	for len(deps) > 0 {
		var free string
		for _, k := range sortedKeys(deps) {
			if len(deps[k]) == 0 {
				free = k
				break
			}
		}
		if free == "" {
			return fmt.Errorf("cycle detected in graph: %v", sortedKeys(deps))
		}
		delete(deps, free)
		for k, d := range deps {
			if !slices.Contains(d, free) {
				continue
			}
			members[k] = append(members[k], members[free]...)
			slices.Sort(members[k])
			members[k] = slices.Compact(members[k])
			deps[k] = slices.DeleteFunc(d, func(s string) bool { return s == free })
		}
	}
	return nil
}

func parseSymbolList(s string, validSymbols []string) ([]string, error) {
	line := make([]string, 0)
	for _, part := range strings.Split(strings.TrimSpace(s), ",") {
		x := strings.TrimSpace(part)
		if x == "" {
			continue
		}
		if !slices.Contains(validSymbols, x) {
			return nil, fmt.Errorf(`%s is not a valid router/group`, x)
		}
		line = append(line, x)
	}
	if len(line) == 0 {
		return nil, fmt.Errorf(`router/group list must not be empty`)
	}
	slices.Sort(line)
	return line, nil
}

func normalizeLine(line string) string {
	if i := strings.Index(line, "//"); i >= 0 {
		line = line[:i]
	}
	return strings.ToLower(strings.TrimSpace(line))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
