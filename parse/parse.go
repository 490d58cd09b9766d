// Package parse builds structural model nodes from Java source units using
// Tree-sitter.
package parse

import (
	"context"
	"fmt"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"

	"decap/model"
)

// SyntaxError reports the first syntax error in a source unit.
type SyntaxError struct {
	Path   string
	Line   int // 1-based
	Column int // 1-based
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d:%d: syntax error", e.Path, e.Line, e.Column)
}

// Parser turns Java source into source unit trees. A Parser may be shared
// between goroutines; calls are serialized.
type Parser struct {
	mu     sync.Mutex
	parser *sitter.Parser
}

// NewParser creates a Java parser.
func NewParser() *Parser {
	p := sitter.NewParser()
	p.SetLanguage(java.GetLanguage())
	return &Parser{parser: p}
}

// ParseUnit parses src and returns the source unit for path, with every
// type, field, method and constructor as a member.
func (p *Parser) ParseUnit(path string, src []byte) (model.Node, error) {
	p.mu.Lock()
	tree, err := p.parser.ParseCtx(context.Background(), nil, src)
	p.mu.Unlock()
	if err != nil {
		return model.Node{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return model.Node{}, syntaxError(path, root)
	}

	unit := model.Node{ID: path, Kind: model.KindSourceUnit}
	b := &builder{src: src}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		if t, ok := b.typeDecl(root.NamedChild(i), path, false, false); ok {
			unit.Members = b.appendMember(unit.Members, t)
		}
	}
	return unit, nil
}

func syntaxError(path string, root *sitter.Node) error {
	at := root
	iter := sitter.NewIterator(root, sitter.DFSMode)
	for {
		n, err := iter.Next()
		if err != nil || n == nil {
			break
		}
		if n.IsError() || n.IsMissing() {
			at = n
			break
		}
	}
	pos := at.StartPoint()
	return &SyntaxError{Path: path, Line: int(pos.Row) + 1, Column: int(pos.Column) + 1}
}

type builder struct {
	src []byte
}

func (b *builder) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(b.src)
}

// appendMember adds m unless a sibling with the same id exists.
func (b *builder) appendMember(members []model.Node, m model.Node) []model.Node {
	for _, existing := range members {
		if existing.ID == m.ID {
			return members
		}
	}
	return append(members, m)
}

// typeDecl converts a class, interface, enum or record declaration. Member
// interfaces, enums and records are implicitly static.
func (b *builder) typeDecl(n *sitter.Node, parent string, nested, inInterface bool) (model.Node, bool) {
	var isInterface, implicitStatic bool
	switch n.Type() {
	case "class_declaration":
	case "enum_declaration", "record_declaration":
		implicitStatic = nested
	case "interface_declaration", "annotation_type_declaration":
		isInterface = true
		implicitStatic = nested
	default:
		return model.Node{}, false
	}
	name := b.text(n.ChildByFieldName("name"))
	if name == "" {
		return model.Node{}, false
	}

	mods := b.modifiers(n)
	if inInterface {
		mods = withImplicit(mods, "public", "static")
	} else if implicitStatic {
		mods = withImplicit(mods, "static")
	}
	t := model.Node{
		ID:         model.Join(parent, name),
		Kind:       model.KindType,
		Modifiers:  model.NewModifiers(mods...),
		Supertypes: model.NewModifiers(b.supertypes(n)...),
	}

	if n.Type() == "record_declaration" {
		if params := n.ChildByFieldName("parameters"); params != nil {
			for _, p := range b.parameters(params) {
				v := model.Node{
					ID:        model.Join(t.ID, p.name),
					Kind:      model.KindVariable,
					Modifiers: model.NewModifiers("private", "final"),
				}
				t.Members = b.appendMember(t.Members, v)
			}
		}
	}

	body := n.ChildByFieldName("body")
	if body == nil {
		return t, true
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		switch child.Type() {
		case "enum_constant":
			t.Members = b.appendMember(t.Members, b.enumConstant(child, t.ID))
		case "enum_body_declarations":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				t.Members = b.member(t.Members, child.NamedChild(j), t.ID, false)
			}
		default:
			t.Members = b.member(t.Members, child, t.ID, isInterface)
		}
	}
	return t, true
}

// member converts one body declaration and appends the result.
func (b *builder) member(members []model.Node, n *sitter.Node, parent string, inInterface bool) []model.Node {
	switch n.Type() {
	case "field_declaration", "constant_declaration":
		mods := b.modifiers(n)
		if inInterface {
			mods = withImplicit(mods, "public", "static", "final")
		}
		for _, v := range b.fields(n, parent, mods) {
			members = b.appendMember(members, v)
		}
	case "method_declaration", "constructor_declaration", "compact_constructor_declaration":
		mods := b.modifiers(n)
		if inInterface && !contains(mods, "private") {
			mods = withImplicit(mods, "public")
		}
		members = b.appendMember(members, b.function(n, parent, mods))
	default:
		if t, ok := b.typeDecl(n, parent, true, inInterface); ok {
			members = b.appendMember(members, t)
		}
	}
	return members
}

func (b *builder) fields(n *sitter.Node, parent string, mods []string) []model.Node {
	var out []model.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		decl := n.NamedChild(i)
		if decl.Type() != "variable_declarator" {
			continue
		}
		name := b.text(decl.ChildByFieldName("name"))
		if name == "" {
			continue
		}
		out = append(out, model.Node{
			ID:          model.Join(parent, name),
			Kind:        model.KindVariable,
			Modifiers:   model.NewModifiers(mods...),
			Initializer: b.lines(decl.ChildByFieldName("value")),
		})
	}
	return out
}

func (b *builder) enumConstant(n *sitter.Node, parent string) model.Node {
	var init []string
	if args := n.ChildByFieldName("arguments"); args != nil {
		init = b.lines(args)
	}
	return model.Node{
		ID:          model.Join(parent, b.text(n.ChildByFieldName("name"))),
		Kind:        model.KindVariable,
		Modifiers:   model.NewModifiers("public", "static", "final"),
		Initializer: init,
	}
}

func (b *builder) function(n *sitter.Node, parent string, mods []string) model.Node {
	name := b.text(n.ChildByFieldName("name"))
	var params []param
	if p := n.ChildByFieldName("parameters"); p != nil {
		params = b.parameters(p)
	}

	types := make([]string, len(params))
	var names []string
	for i, p := range params {
		types[i] = p.typ
		names = append(names, p.name)
	}
	return model.Node{
		ID:         model.Join(parent, name+"("+strings.Join(types, ", ")+")"),
		Kind:       model.KindFunction,
		Modifiers:  model.NewModifiers(mods...),
		Parameters: names,
		Body:       b.lines(n.ChildByFieldName("body")),
	}
}

type param struct {
	typ  string
	name string
}

func (b *builder) parameters(n *sitter.Node) []param {
	var out []param
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "formal_parameter":
			typ := compact(b.text(child.ChildByFieldName("type")))
			if dims := child.ChildByFieldName("dimensions"); dims != nil {
				typ += compact(b.text(dims))
			}
			out = append(out, param{typ: typ, name: b.text(child.ChildByFieldName("name"))})
		case "spread_parameter":
			var p param
			for j := 0; j < int(child.NamedChildCount()); j++ {
				c := child.NamedChild(j)
				switch {
				case c.Type() == "variable_declarator":
					p.name = b.text(c.ChildByFieldName("name"))
				case c.Type() != "modifiers" && p.typ == "":
					p.typ = compact(b.text(c)) + "..."
				}
			}
			out = append(out, p)
		}
	}
	return out
}

// modifiers returns the keyword modifiers of a declaration. Annotations are
// dropped.
func (b *builder) modifiers(n *sitter.Node) []string {
	var mods *sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == "modifiers" {
			mods = c
			break
		}
	}
	if mods == nil {
		return nil
	}

	var out []string
	for i := 0; i < int(mods.ChildCount()); i++ {
		c := mods.Child(i)
		switch c.Type() {
		case "annotation", "marker_annotation", "line_comment", "block_comment":
			continue
		}
		out = append(out, b.text(c))
	}
	return out
}

func (b *builder) supertypes(n *sitter.Node) []string {
	var out []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "superclass":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				out = append(out, compact(b.text(c.NamedChild(j))))
			}
		case "super_interfaces", "extends_interfaces":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				list := c.NamedChild(j)
				if list.Type() != "type_list" {
					continue
				}
				for k := 0; k < int(list.NamedChildCount()); k++ {
					out = append(out, compact(b.text(list.NamedChild(k))))
				}
			}
		}
	}
	return out
}

// lines returns the trimmed, non-blank source lines of n.
func (b *builder) lines(n *sitter.Node) []string {
	if n == nil {
		return nil
	}
	var out []string
	for _, line := range strings.Split(b.text(n), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// compact removes all whitespace from a type expression.
func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func withImplicit(mods []string, implicit ...string) []string {
	for _, m := range implicit {
		if !contains(mods, m) {
			mods = append(mods, m)
		}
	}
	return mods
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
