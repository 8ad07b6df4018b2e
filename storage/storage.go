// Package storage implements NodeStorage: a nested keyed directory over
// heterogeneous graph objects (Nodes, Outputs, Inputs), addressed by
// dotted paths, with bulk key-matching connect and YAML label loading
// (§4.10). Nesting is modeled as dotted-string keys over a flat map
// rather than a literal tree of child directories — simpler, and
// equivalent for every operation §4.10 specifies (walk, key-match
// connect, label merge by longest-prefix group).
package storage

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dagops/dflow/connect"
	"github.com/dagops/dflow/core"
	"github.com/dagops/dflow/labels"
	"gopkg.in/yaml.v3"
)

// Item is one (key, value) pair yielded by WalkItems. Value holds a
// *core.Node, *core.Output, or *core.Input.
type Item struct {
	Key   string
	Value any
}

// NodeStorage is a process-independent directory instance; callers
// thread it explicitly rather than relying on a hidden global (§9). The
// package keeps no "current storage" stack.
type NodeStorage struct {
	mu    sync.Mutex
	items map[string]any
	order []string
}

// New returns an empty NodeStorage.
func New() *NodeStorage {
	return &NodeStorage{items: make(map[string]any)}
}

// Store registers value under the dotted path key. Rejects a duplicate
// key.
func (s *NodeStorage) Store(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[key]; exists {
		return fmt.Errorf("storage: duplicate key %q: %w", key, core.ErrDuplicateName)
	}
	s.items[key] = value
	s.order = append(s.order, key)
	return nil
}

// Get returns the value stored at key, if any.
func (s *NodeStorage) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[key]
	return v, ok
}

// Remove deletes key from the directory (used by RemoveConnectedInputs).
func (s *NodeStorage) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[key]; !ok {
		return
	}
	delete(s.items, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// WalkItems yields every (key, value) pair in insertion order (a
// depth-first order, since keys are inserted in construction order as
// the tree they encode is built).
func (s *NodeStorage) WalkItems() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Item, len(s.order))
	for i, k := range s.order {
		out[i] = Item{Key: k, Value: s.items[k]}
	}
	return out
}

// Connect performs the key-matching bulk connection `self >> other`
// (§4.10): for every key present in both directories, connects
// self[key] into other[key]. When removeConnectedInputs is true (the
// default per spec), a successfully connected input is dropped from
// other's directory afterward. Returns an error if no key matched.
func (s *NodeStorage) Connect(other *NodeStorage, removeConnectedInputs bool) error {
	matched := 0
	for _, item := range s.WalkItems() {
		dstVal, ok := other.Get(item.Key)
		if !ok {
			continue
		}
		if err := connectPair(item.Value, dstVal); err != nil {
			return fmt.Errorf("storage: connect %q: %w", item.Key, err)
		}
		matched++
		if removeConnectedInputs {
			if _, isInput := dstVal.(*core.Input); isInput {
				other.Remove(item.Key)
			}
		}
	}
	if matched == 0 {
		return fmt.Errorf("storage: no matching keys between directories: %w", core.ErrConnection)
	}
	return nil
}

// ConnectFrom performs `self << other` (§4.6, §4.10): for every Node
// stored in self, binds each of the node's unconnected inputs to the
// Output in other whose key's last dotted segment equals the input's name
// (connect.ConnectFromMap). The node's own storage key plays no part in
// the lookup; when several Outputs in other share a last segment, the one
// walked last wins.
func (s *NodeStorage) ConnectFrom(other *NodeStorage) error {
	outputsByName := make(map[string]*core.Output)
	for _, item := range other.WalkItems() {
		if out, ok := item.Value.(*core.Output); ok {
			leaf := item.Key
			if i := strings.LastIndex(leaf, "."); i >= 0 {
				leaf = leaf[i+1:]
			}
			outputsByName[leaf] = out
		}
	}
	for _, item := range s.WalkItems() {
		n, ok := item.Value.(*core.Node)
		if !ok {
			continue
		}
		if err := connect.ConnectFromMap(n, outputsByName); err != nil {
			return fmt.Errorf("storage: connect-from %q: %w", item.Key, err)
		}
	}
	return nil
}

func connectPair(src, dst any) error {
	switch s := src.(type) {
	case *core.Output:
		switch d := dst.(type) {
		case *core.Input:
			return connect.Connect(s, d)
		case *core.Node:
			_, err := connect.ConnectNode(s, d, 0)
			return err
		default:
			return fmt.Errorf("storage: unsupported target type %T", dst)
		}
	case *core.Node:
		return connect.FromNode(s, []any{dst})
	default:
		return fmt.Errorf("storage: unsupported source type %T", src)
	}
}

// ReadPaths populates the Labels.Paths field of every labeled item
// (Nodes and Outputs) with its own storage key (§4.10).
func (s *NodeStorage) ReadPaths() {
	for _, item := range s.WalkItems() {
		if l := ensureLabels(item.Value); l != nil {
			l.Paths = append(l.Paths, item.Key)
		}
	}
}

// ReadLabels parses a YAML document (nested mapping, §6) and merges
// matching groups into the Labels of every item whose storage key has
// the group's dotted path as its longest matching prefix. A top-level
// "group" key applies to every entry nested under it. When strict, an
// error is returned if no stored item matched any group; a group that
// matches nothing while others match is not reported.
func (s *NodeStorage) ReadLabels(data []byte, strict bool) error {
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("storage: parsing label yaml: %w", err)
	}

	groups := map[string]*labels.Labels{}
	flattenLabelTree("", tree, groups)

	matchedAny := false
	for _, item := range s.WalkItems() {
		prefix := longestPrefixMatch(item.Key, groups)
		if prefix == "" {
			continue
		}
		l := ensureLabels(item.Value)
		if l == nil {
			continue
		}
		l.Merge(groups[prefix])
		matchedAny = true
	}
	if strict && !matchedAny && len(groups) > 0 {
		return fmt.Errorf("storage: no storage key matched any label group: %w", core.ErrInitialization)
	}
	return nil
}

// flattenLabelTree walks a parsed YAML mapping, emitting one *labels.Labels
// per dotted path whose leaf keys are recognized Labels fields (§6), and
// recursing into nested maps (or a nested "group" key) otherwise.
func flattenLabelTree(prefix string, node map[string]any, out map[string]*labels.Labels) {
	l := &labels.Labels{}
	hasFields := false
	for k, v := range node {
		s, isStr := v.(string)
		switch k {
		case "text":
			l.Text, hasFields = s, hasFields || isStr
		case "graph":
			l.Graph, hasFields = s, hasFields || isStr
		case "latex":
			l.Latex, hasFields = s, hasFields || isStr
		case "axis":
			l.Axis, hasFields = s, hasFields || isStr
		case "xaxis":
			l.XAxis, hasFields = s, hasFields || isStr
		case "plottitle":
			l.PlotTitle, hasFields = s, hasFields || isStr
		case "roottitle":
			l.RootTitle, hasFields = s, hasFields || isStr
		case "rootaxis":
			l.RootAxis, hasFields = s, hasFields || isStr
		case "mark":
			l.Mark, hasFields = s, hasFields || isStr
		case "plotmethod":
			l.PlotMethod, hasFields = s, hasFields || isStr
		case "node_hidden":
			if b, ok := v.(bool); ok {
				l.NodeHidden = b
				hasFields = true
			}
		}
	}
	if hasFields {
		out[prefix] = l
	}
	for k, v := range node {
		nested, ok := v.(map[string]any)
		if !ok {
			continue
		}
		childPrefix := k
		if k == "group" {
			childPrefix = prefix
		} else if prefix != "" {
			childPrefix = prefix + "." + k
		}
		flattenLabelTree(childPrefix, nested, out)
	}
}

func longestPrefixMatch(key string, groups map[string]*labels.Labels) string {
	best := ""
	for g := range groups {
		if g == key || strings.HasPrefix(key, g+".") {
			if len(g) > len(best) {
				best = g
			}
		}
	}
	return best
}

func ensureLabels(v any) *labels.Labels {
	switch n := v.(type) {
	case *core.Node:
		return n.Labels()
	case *core.Output:
		if l := n.Labels(); l != nil {
			return l
		}
		l := &labels.Labels{}
		n.SetLabels(l)
		return l
	default:
		return nil
	}
}

// Keys returns every registered key, sorted, mainly for debugging/tests.
func (s *NodeStorage) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.order...)
	sort.Strings(out)
	return out
}
