package graph

import (
	"github.com/google/uuid"
	"github.com/rheinberg/docflow/model"
)

// Graph is an in-memory adjacency view over a document's staged
// relationship edges. Nodes are the uuid endpoints of the edges
// (project, document, chunk, mention and canonical entity rids).
type Graph struct {
	forward map[uuid.UUID][]*model.RelationshipEdge
	reverse map[uuid.UUID][]*model.RelationshipEdge
}

// TraversalResult contains a reached node and its distance from the source
type TraversalResult struct {
	NodeID   uuid.UUID
	Distance int
	Path     []uuid.UUID // Path from source to this node
}

// New builds the adjacency view from staged edges
func New(edges []*model.RelationshipEdge) *Graph {
	g := &Graph{
		forward: make(map[uuid.UUID][]*model.RelationshipEdge),
		reverse: make(map[uuid.UUID][]*model.RelationshipEdge),
	}
	for _, edge := range edges {
		g.forward[edge.SourceID] = append(g.forward[edge.SourceID], edge)
		g.reverse[edge.TargetID] = append(g.reverse[edge.TargetID], edge)
	}
	return g
}

func matchesType(edge *model.RelationshipEdge, edgeTypes []model.EdgeType) bool {
	if len(edgeTypes) == 0 {
		return true
	}
	for _, edgeType := range edgeTypes {
		if edge.EdgeType == edgeType {
			return true
		}
	}
	return false
}

// next collects the unvisited nodes reachable from a node in one hop
func (g *Graph) next(nodeID uuid.UUID, edgeTypes []model.EdgeType, followReverse bool, visited map[uuid.UUID]bool) []uuid.UUID {
	var targets []uuid.UUID
	for _, edge := range g.forward[nodeID] {
		if matchesType(edge, edgeTypes) && !visited[edge.TargetID] {
			targets = append(targets, edge.TargetID)
		}
	}
	if followReverse {
		for _, edge := range g.reverse[nodeID] {
			if matchesType(edge, edgeTypes) && !visited[edge.SourceID] {
				targets = append(targets, edge.SourceID)
			}
		}
	}
	return targets
}

// BFS performs breadth-first search from a source node
func (g *Graph) BFS(sourceID uuid.UUID, maxHops int, edgeTypes []model.EdgeType, followReverse bool) []*TraversalResult {
	visited := map[uuid.UUID]bool{sourceID: true}
	queue := []TraversalResult{{
		NodeID:   sourceID,
		Distance: 0,
		Path:     []uuid.UUID{sourceID},
	}}

	var results []*TraversalResult
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		results = append(results, &current)

		if current.Distance >= maxHops {
			continue
		}

		for _, targetID := range g.next(current.NodeID, edgeTypes, followReverse, visited) {
			visited[targetID] = true

			newPath := make([]uuid.UUID, len(current.Path))
			copy(newPath, current.Path)
			newPath = append(newPath, targetID)

			queue = append(queue, TraversalResult{
				NodeID:   targetID,
				Distance: current.Distance + 1,
				Path:     newPath,
			})
		}
	}

	return results
}

// DFS performs depth-first search from a source node
func (g *Graph) DFS(sourceID uuid.UUID, maxHops int, edgeTypes []model.EdgeType, followReverse bool) []*TraversalResult {
	visited := make(map[uuid.UUID]bool)
	var results []*TraversalResult
	g.dfsRecursive(sourceID, 0, maxHops, []uuid.UUID{sourceID}, edgeTypes, followReverse, visited, &results)
	return results
}

func (g *Graph) dfsRecursive(
	current uuid.UUID,
	distance int,
	maxHops int,
	path []uuid.UUID,
	edgeTypes []model.EdgeType,
	followReverse bool,
	visited map[uuid.UUID]bool,
	results *[]*TraversalResult,
) {
	visited[current] = true

	pathCopy := make([]uuid.UUID, len(path))
	copy(pathCopy, path)
	*results = append(*results, &TraversalResult{
		NodeID:   current,
		Distance: distance,
		Path:     pathCopy,
	})

	if distance >= maxHops {
		return
	}

	for _, targetID := range g.next(current, edgeTypes, followReverse, visited) {
		if visited[targetID] {
			continue
		}

		newPath := make([]uuid.UUID, len(path))
		copy(newPath, path)
		newPath = append(newPath, targetID)

		g.dfsRecursive(targetID, distance+1, maxHops, newPath, edgeTypes, followReverse, visited, results)
	}
}

// Neighbors retrieves the immediate (1-hop) neighbors of a node
func (g *Graph) Neighbors(nodeID uuid.UUID, edgeTypes []model.EdgeType, followReverse bool) []uuid.UUID {
	results := g.BFS(nodeID, 1, edgeTypes, followReverse)

	// Skip the source node itself (first result)
	neighbors := make([]uuid.UUID, 0, len(results)-1)
	for i := 1; i < len(results); i++ {
		neighbors = append(neighbors, results[i].NodeID)
	}

	return neighbors
}
