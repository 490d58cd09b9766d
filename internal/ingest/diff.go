package ingest

import (
	"reflect"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"decap/model"
)

// DiffUnits returns the edits that turn the before tree of a source unit into
// the after tree. Either may be nil for an added or deleted unit.
//
// Vanished nodes are removed before new nodes are added, so a node whose kind
// or parameter list changed is removed and re-added under the same id. Nodes
// present on both sides with the same kind get an Edit* carrying only what
// changed.
func DiffUnits(before, after *model.Node) []model.Edit {
	switch {
	case before == nil && after == nil:
		return nil
	case before == nil:
		return []model.Edit{model.AddNode{Node: after.Clone()}}
	case after == nil:
		return []model.Edit{model.RemoveNode{ID: before.ID}}
	}

	old := index(before)
	cur := index(after)

	var removed, added []string
	for id, o := range old {
		if n, ok := cur[id]; !ok || replaced(o, n) {
			removed = append(removed, id)
		}
	}
	for id, n := range cur {
		if o, ok := old[id]; !ok || replaced(o, n) {
			added = append(added, id)
		}
	}
	removed = topmost(removed)
	added = topmost(added)

	var edits []model.Edit
	for _, id := range removed {
		edits = append(edits, model.RemoveNode{ID: id})
	}
	for _, id := range added {
		if n, ok := findTree(after, id); ok {
			edits = append(edits, model.AddNode{Node: n.Clone()})
		}
	}

	common := make([]string, 0, len(cur))
	for id := range cur {
		if _, ok := old[id]; ok && !under(id, added) && !under(id, removed) {
			common = append(common, id)
		}
	}
	sort.Strings(common)
	for _, id := range common {
		if e := editNode(old[id], cur[id]); e != nil {
			edits = append(edits, e)
		}
	}
	return edits
}

// index maps every node of the tree by id, stripped of members.
func index(root *model.Node) map[string]model.Node {
	out := make(map[string]model.Node)
	for _, n := range root.Flatten() {
		out[n.ID] = n
	}
	return out
}

// replaced reports whether a node cannot be edited in place.
func replaced(before, after model.Node) bool {
	if before.Kind != after.Kind {
		return true
	}
	return before.Kind == model.KindFunction && !reflect.DeepEqual(before.Parameters, after.Parameters)
}

// topmost returns the sorted ids that have no ancestor in ids.
func topmost(ids []string) []string {
	sort.Strings(ids)
	var out []string
	for _, id := range ids {
		if !under(id, out) {
			out = append(out, id)
		}
	}
	return out
}

// under reports whether id is one of roots or inside one of them.
func under(id string, roots []string) bool {
	for _, r := range roots {
		if id == r || model.IsDescendant(id, r) {
			return true
		}
	}
	return false
}

func findTree(root *model.Node, id string) (model.Node, bool) {
	if root.ID == id {
		return *root, true
	}
	for i := range root.Members {
		m := &root.Members[i]
		if m.ID == id || model.IsDescendant(id, m.ID) {
			return findTree(m, id)
		}
	}
	return model.Node{}, false
}

func editNode(before, after model.Node) model.Edit {
	mods := setDelta(before.Modifiers, after.Modifiers)
	switch after.Kind {
	case model.KindFunction:
		body := lineEdits(before.Body, after.Body)
		if mods.IsZero() && len(body) == 0 {
			return nil
		}
		return model.EditFunction{ID: after.ID, Modifiers: mods, Body: body}
	case model.KindVariable:
		init := lineEdits(before.Initializer, after.Initializer)
		if mods.IsZero() && len(init) == 0 {
			return nil
		}
		return model.EditVariable{ID: after.ID, Modifiers: mods, Initializer: init}
	case model.KindType:
		supers := setDelta(before.Supertypes, after.Supertypes)
		if mods.IsZero() && supers.IsZero() {
			return nil
		}
		return model.EditType{ID: after.ID, Modifiers: mods, Supertypes: supers}
	default:
		return nil
	}
}

func setDelta(before, after []string) model.SetDelta {
	var d model.SetDelta
	for _, v := range before {
		if !containsString(after, v) {
			d.Removed = append(d.Removed, v)
		}
	}
	for _, v := range after {
		if !containsString(before, v) {
			d.Added = append(d.Added, v)
		}
	}
	sort.Strings(d.Removed)
	sort.Strings(d.Added)
	return d
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// lineEdits computes splices turning before into after with a line-mode
// diff. Each splice index is relative to the list as already edited by the
// preceding splices.
func lineEdits(before, after []string) []model.LineEdit {
	if reflect.DeepEqual(before, after) {
		return nil
	}

	dmp := diffmatchpatch.New()
	chars1, chars2, lineArray := dmp.DiffLinesToChars(joinLines(before), joinLines(after))
	diffs := dmp.DiffMain(chars1, chars2, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var (
		edits   []model.LineEdit
		pos     int
		pending *model.LineEdit
	)
	flush := func() {
		if pending == nil {
			return
		}
		edits = append(edits, *pending)
		pos += len(pending.Insert)
		pending = nil
	}
	for _, d := range diffs {
		lines := splitLines(d.Text)
		if len(lines) == 0 {
			continue
		}
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			flush()
			pos += len(lines)
		case diffmatchpatch.DiffDelete:
			if pending == nil {
				pending = &model.LineEdit{Index: pos}
			}
			pending.Remove += len(lines)
		case diffmatchpatch.DiffInsert:
			if pending == nil {
				pending = &model.LineEdit{Index: pos}
			}
			pending.Insert = append(pending.Insert, lines...)
		}
	}
	flush()
	return edits
}

func joinLines(lines []string) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String()
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}
