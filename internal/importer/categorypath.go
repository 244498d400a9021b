package importer

import (
	"sort"
	"strings"
)

// CategoryPathDelimiter separates hierarchy segments in feed category paths
const CategoryPathDelimiter = ">"

// CategoryNode is one node of the materialized category tree. Depth is the
// 1-based count of path segments; ParentPath is nil for top-level nodes.
type CategoryNode struct {
	Path       string
	Name       string
	ParentPath *string
	Depth      int
}

// ExpandCategoryPaths turns a set of '>'-delimited category path strings into
// the deduplicated set of nodes needed to represent them all as a tree,
// ancestors included. Segment whitespace is trimmed and empty segments are
// dropped; an all-empty path contributes nothing. The result is sorted by
// path, which also orders every parent before its children.
func ExpandCategoryPaths(paths []string) []CategoryNode {
	nodes := make(map[string]CategoryNode)

	for _, path := range paths {
		segments := splitCategoryPath(path)
		for depth := 1; depth <= len(segments); depth++ {
			fullPath := strings.Join(segments[:depth], CategoryPathDelimiter)
			if _, ok := nodes[fullPath]; ok {
				continue
			}
			node := CategoryNode{
				Path:  fullPath,
				Name:  segments[depth-1],
				Depth: depth,
			}
			if depth > 1 {
				parent := strings.Join(segments[:depth-1], CategoryPathDelimiter)
				node.ParentPath = &parent
			}
			nodes[fullPath] = node
		}
	}

	result := make([]CategoryNode, 0, len(nodes))
	for _, node := range nodes {
		result = append(result, node)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Path < result[j].Path
	})
	return result
}

func splitCategoryPath(path string) []string {
	var segments []string
	for _, segment := range strings.Split(path, CategoryPathDelimiter) {
		trimmed := strings.TrimSpace(segment)
		if trimmed != "" {
			segments = append(segments, trimmed)
		}
	}
	return segments
}
