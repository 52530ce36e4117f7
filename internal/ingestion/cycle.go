package ingestion

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// maxNestingDepth bounds the raw_json tree of a record. Feeds are shallow in
// practice; anything deeper indicates a malformed or adversarial document.
const maxNestingDepth = 10

// CheckRecordDepth walks a record's raw_json tree iteratively and rejects
// trees nested deeper than maxNestingDepth levels or containing a self-cycle
// by object identity. The walk is an explicit stack, not recursion, so a
// hostile document cannot exhaust the goroutine stack.
func CheckRecordDepth(raw json.RawMessage) error {
	var root any
	if err := json.Unmarshal(raw, &root); err != nil {
		return fmt.Errorf("%w: %w", ErrCircularReference, err)
	}

	type frame struct {
		node  any
		depth int
	}

	stack := []frame{{node: root, depth: 1}}
	visited := make(map[uintptr]struct{})

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if top.depth > maxNestingDepth {
			return fmt.Errorf("%w: nesting exceeds %d levels", ErrCircularReference, maxNestingDepth)
		}

		switch node := top.node.(type) {
		case map[string]any:
			ptr := reflect.ValueOf(node).Pointer()
			if _, seen := visited[ptr]; seen {
				return fmt.Errorf("%w: self-referencing object", ErrCircularReference)
			}

			visited[ptr] = struct{}{}

			for _, v := range node {
				stack = append(stack, frame{node: v, depth: top.depth + 1})
			}
		case []any:
			if len(node) == 0 {
				continue
			}

			ptr := reflect.ValueOf(node).Pointer()
			if _, seen := visited[ptr]; seen {
				return fmt.Errorf("%w: self-referencing array", ErrCircularReference)
			}

			visited[ptr] = struct{}{}

			for _, v := range node {
				stack = append(stack, frame{node: v, depth: top.depth + 1})
			}
		default:
			// Scalars terminate a path.
		}
	}

	return nil
}
