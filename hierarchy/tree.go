package hierarchy

import (
	"errors"
	"sort"

	"parcelhub/models"
)

var ErrCycleDetected = errors.New("hierarchy: cycle detected in existing data")

// Ancestors returns the parent chain of id, nearest first.
func Ancestors(snap *Snapshot, id string) ([]*models.Package, error) {
	node, ok := snap.Get(id)
	if !ok {
		return nil, &InsufficientContextError{MissingID: id}
	}

	var chain []*models.Package
	visited := map[string]struct{}{id: {}}
	for next := parentOf(node); next != ""; {
		if _, seen := visited[next]; seen {
			return chain, ErrCycleDetected
		}
		visited[next] = struct{}{}

		p, ok := snap.Get(next)
		if !ok {
			return chain, &InsufficientContextError{MissingID: next}
		}
		chain = append(chain, p)
		next = parentOf(p)
	}
	return chain, nil
}

// Level is the depth of id in its tree: 0 for a root, 1 for a child.
func Level(snap *Snapshot, id string) (int, error) {
	chain, err := Ancestors(snap, id)
	if err != nil {
		return 0, err
	}
	return len(chain), nil
}

// Root returns the topmost ancestor of id, or the package itself.
func Root(snap *Snapshot, id string) (*models.Package, error) {
	chain, err := Ancestors(snap, id)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		node, _ := snap.Get(id)
		return node, nil
	}
	return chain[len(chain)-1], nil
}

// Children returns the direct children of id present in the snapshot,
// ordered by guide number.
func Children(snap *Snapshot, id string) []*models.Package {
	return childIndex(snap)[id]
}

// Descendants returns every package below id, breadth first. Packages that
// were already visited are skipped so corrupt data cannot loop forever.
func Descendants(snap *Snapshot, id string) []*models.Package {
	index := childIndex(snap)

	var out []*models.Package
	visited := map[string]struct{}{id: {}}
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range index[cur] {
			if _, seen := visited[child.ID]; seen {
				continue
			}
			visited[child.ID] = struct{}{}
			out = append(out, child)
			queue = append(queue, child.ID)
		}
	}
	return out
}

func childIndex(snap *Snapshot) map[string][]*models.Package {
	index := make(map[string][]*models.Package)
	if snap == nil {
		return index
	}
	for _, p := range snap.packages {
		if parent := parentOf(p); parent != "" {
			index[parent] = append(index[parent], p)
		}
	}
	for _, kids := range index {
		sort.Slice(kids, func(i, j int) bool {
			if kids[i].GuideNumber != kids[j].GuideNumber {
				return kids[i].GuideNumber < kids[j].GuideNumber
			}
			return kids[i].ID < kids[j].ID
		})
	}
	return index
}
