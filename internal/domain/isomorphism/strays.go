package isomorphism

import (
	"fmt"
	"sort"

	"github.com/katalvlaran/lvlath/bfs"
	"github.com/katalvlaran/lvlath/core"
	"github.com/okian/fightrank/internal/domain/model"
)

// strayClusters groups unresolved ids that fought each other in the aux
// table. Clusters are ordered largest first.
func strayClusters(strays []string, aux model.Table) ([][]string, error) {
	if len(strays) == 0 {
		return nil, nil
	}
	g := core.NewGraph()
	isStray := make(map[string]struct{}, len(strays))
	for _, id := range strays {
		if err := g.AddVertex(id); err != nil {
			return nil, fmt.Errorf("add vertex %s: %w", id, err)
		}
		isStray[id] = struct{}{}
	}
	for i := range aux {
		a, b := aux[i].SelfID, aux[i].OtherID
		if _, ok := isStray[a]; !ok {
			continue
		}
		if _, ok := isStray[b]; !ok {
			continue
		}
		if a == b || g.HasEdge(a, b) {
			continue
		}
		if _, err := g.AddEdge(a, b, 0); err != nil {
			return nil, fmt.Errorf("add edge %s-%s: %w", a, b, err)
		}
	}

	visited := make(map[string]bool, len(strays))
	var out [][]string
	for _, id := range strays {
		if visited[id] {
			continue
		}
		res, err := bfs.BFS(g, id)
		if err != nil {
			return nil, fmt.Errorf("walk cluster from %s: %w", id, err)
		}
		comp := append([]string(nil), res.Order...)
		for _, v := range comp {
			visited[v] = true
		}
		sort.Strings(comp)
		out = append(out, comp)
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out, nil
}
