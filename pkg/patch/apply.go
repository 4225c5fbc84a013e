// Package patch computes new document states from field-level patch requests.
//
// Apply is pure: it never mutates its input and performs no I/O. Field edits are
// translated into RFC 6902 operations and executed by the json-patch engine.
package patch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	jsonpatch "github.com/evanphx/json-patch"

	"github.com/aretw0/alertidx/pkg/core"
)

// Apply returns a new document with every operation of req applied in order.
//
// If req carries an expected version that differs from base.Version the result
// is core.ErrOriginalNotFound: the caller must re-retrieve and retry.
func Apply(base core.Document, req core.PatchRequest) (core.Document, error) {
	if req.ExpectedVersion != nil && *req.ExpectedVersion != base.Version {
		return core.Document{}, fmt.Errorf("%w: %s at version %d, patch expects %d",
			core.ErrOriginalNotFound, base.GUID, base.Version, *req.ExpectedVersion)
	}

	out := base.Clone()
	if len(req.Operations) == 0 {
		return out, nil
	}

	state := map[string]any(core.NormalizeFields(out.Fields))
	written := &touched{}
	for i, op := range req.Operations {
		tokens, _ := parsePointer(op.Path)
		written.add(tokens, op.Op)
		rfc, err := translate(state, op)
		if err != nil {
			return core.Document{}, fmt.Errorf("%w: operation %d (%s %s): %v", core.ErrInvalidRequest, i, op.Op, op.Path, err)
		}
		if len(rfc) == 0 {
			continue
		}
		state, err = run(state, rfc)
		if err != nil {
			return core.Document{}, fmt.Errorf("%w: operation %d (%s %s): %v", core.ErrInvalidRequest, i, op.Op, op.Path, err)
		}
	}

	// Values outside the written paths keep their exact stored form.
	out.Fields = restore(state, map[string]any(base.Clone().Fields), written)
	return out, nil
}

// touched is the tree of field paths written by a patch.
type touched struct {
	replaced bool
	appended bool
	children map[string]*touched
}

func (t *touched) add(tokens []string, op core.PatchOp) {
	node := t
	for _, tok := range tokens {
		if node.children == nil {
			node.children = make(map[string]*touched)
		}
		next, ok := node.children[tok]
		if !ok {
			next = &touched{}
			node.children[tok] = next
		}
		node = next
	}
	if op == core.OpAppend {
		node.appended = true
	} else {
		node.replaced = true
	}
}

// restore copies every value of original that no operation wrote back into
// patched. Lists that were only appended to get their original elements back.
func restore(patched, original map[string]any, node *touched) map[string]any {
	for k, v := range patched {
		orig, had := original[k]
		if !had {
			continue
		}
		child := node.children[k]
		switch {
		case child == nil:
			patched[k] = orig
		case child.replaced:
		case child.appended:
			list, isList := v.([]any)
			prev, wasList := orig.([]any)
			if isList && wasList && len(child.children) == 0 && len(list) >= len(prev) {
				copy(list, prev)
			}
		default:
			pm, ok := v.(map[string]any)
			om, wasMap := orig.(map[string]any)
			if ok && wasMap {
				restore(pm, om, child)
			}
		}
	}
	return patched
}

// Validate checks the shape of a patch request without a base document.
func Validate(req core.PatchRequest) error {
	if req.GUID == "" {
		return fmt.Errorf("%w: patch has no guid", core.ErrInvalidRequest)
	}
	for i, op := range req.Operations {
		switch op.Op {
		case core.OpSet, core.OpRemove, core.OpAppend:
		default:
			return fmt.Errorf("%w: operation %d: unknown op %q", core.ErrInvalidRequest, i, op.Op)
		}
		if _, err := parsePointer(op.Path); err != nil {
			return fmt.Errorf("%w: operation %d: %v", core.ErrInvalidRequest, i, err)
		}
	}
	return nil
}

// rfcOp is a single RFC 6902 operation.
type rfcOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// translate maps one field operation onto RFC 6902 operations, inspecting the
// current state so that set creates missing parents, remove of an absent field
// is a no-op, and append creates the list when absent.
func translate(state map[string]any, op core.PatchOperation) ([]rfcOp, error) {
	tokens, err := parsePointer(op.Path)
	if err != nil {
		return nil, err
	}

	switch op.Op {
	case core.OpSet:
		ops, err := ensureParents(state, tokens)
		if err != nil {
			return nil, err
		}
		return append(ops, rfcOp{Op: "add", Path: pointer(tokens), Value: core.Normalize(op.Value)}), nil

	case core.OpRemove:
		if _, found := lookup(state, tokens); !found {
			return nil, nil
		}
		return []rfcOp{{Op: "remove", Path: pointer(tokens)}}, nil

	case core.OpAppend:
		current, found := lookup(state, tokens)
		if found {
			if _, isList := current.([]any); !isList {
				return nil, fmt.Errorf("append target is %T, not a list", current)
			}
			return []rfcOp{{Op: "add", Path: pointer(tokens) + "/-", Value: core.Normalize(op.Value)}}, nil
		}
		ops, err := ensureParents(state, tokens)
		if err != nil {
			return nil, err
		}
		return append(ops, rfcOp{Op: "add", Path: pointer(tokens), Value: []any{core.Normalize(op.Value)}}), nil

	default:
		return nil, fmt.Errorf("unknown op %q", op.Op)
	}
}

// ensureParents returns the operations creating every missing intermediate object.
func ensureParents(state map[string]any, tokens []string) ([]rfcOp, error) {
	var ops []rfcOp
	cur := state
	for i := 0; i < len(tokens)-1; i++ {
		next, ok := cur[tokens[i]]
		if !ok {
			for j := i; j < len(tokens)-1; j++ {
				ops = append(ops, rfcOp{Op: "add", Path: pointer(tokens[:j+1]), Value: map[string]any{}})
			}
			return ops, nil
		}
		m, isMap := next.(map[string]any)
		if !isMap {
			return nil, fmt.Errorf("%s is %T, not an object", pointer(tokens[:i+1]), next)
		}
		cur = m
	}
	return ops, nil
}

func lookup(state map[string]any, tokens []string) (any, bool) {
	var cur any = state
	for _, tok := range tokens {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[tok]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func run(state map[string]any, ops []rfcOp) (map[string]any, error) {
	raw, err := json.Marshal(ops)
	if err != nil {
		return nil, err
	}
	p, err := jsonpatch.DecodePatch(raw)
	if err != nil {
		return nil, err
	}
	doc, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	patched, err := p.Apply(doc)
	if err != nil {
		return nil, err
	}
	var next map[string]any
	decoder := json.NewDecoder(bytes.NewReader(patched))
	decoder.UseNumber()
	if err := decoder.Decode(&next); err != nil {
		return nil, err
	}
	return map[string]any(core.NormalizeFields(next)), nil
}

// parsePointer splits a JSON Pointer into unescaped reference tokens.
func parsePointer(path string) ([]string, error) {
	if path == "" || path == "/" {
		return nil, fmt.Errorf("path must name a field")
	}
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("path %q must start with /", path)
	}
	parts := strings.Split(path[1:], "/")
	for i, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("path %q has an empty segment", path)
		}
		parts[i] = strings.ReplaceAll(strings.ReplaceAll(p, "~1", "/"), "~0", "~")
	}
	switch parts[0] {
	case core.GUIDField, core.SensorTypeField, core.VersionField, core.TimestampField:
		return nil, fmt.Errorf("%s is managed by the store and cannot be patched", parts[0])
	}
	return parts, nil
}

func pointer(tokens []string) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteByte('/')
		b.WriteString(strings.ReplaceAll(strings.ReplaceAll(t, "~", "~0"), "/", "~1"))
	}
	return b.String()
}
