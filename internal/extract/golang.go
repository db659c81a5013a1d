package extract

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/symdex-dev/symdex/internal/store"
)

// signatureLen bounds one-line signatures and member excerpts.
const signatureLen = 240

// GoExtractor parses Go sources with tree-sitter and emits symbols for
// top-level declarations plus struct and interface members. Methods
// link to their receiver type and embedded types produce relationships
// when the target type is declared in the same file; cross-file
// resolution is left to the semantic layer.
type GoExtractor struct {
	// tree-sitter parsers are not safe for concurrent use, so each
	// Extract call checks one out of the pool.
	parsers sync.Pool
}

var _ Extractor = (*GoExtractor)(nil)

// NewGoExtractor returns a Go extractor with a warm parser pool.
func NewGoExtractor() *GoExtractor {
	return &GoExtractor{
		parsers: sync.Pool{New: func() any {
			p := sitter.NewParser()
			p.SetLanguage(golang.GetLanguage())
			return p
		}},
	}
}

// Extract implements Extractor.
func (e *GoExtractor) Extract(ctx context.Context, file *SourceFile) ([]store.Symbol, []store.Relationship, error) {
	parser := e.parsers.Get().(*sitter.Parser)
	defer e.parsers.Put(parser)

	tree, err := parser.ParseCtx(ctx, nil, file.Content)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", file.Path, err)
	}
	defer tree.Close()

	w := &goWalker{
		path:    file.Path,
		source:  file.Content,
		typeIDs: make(map[string]string),
	}
	w.walkFile(tree.RootNode())
	w.resolveLocalTargets()

	return w.symbols, w.relationships, nil
}

// goWalker accumulates symbols for one file. Methods and embedded
// fields are resolved against same-file type declarations after the
// walk, since a receiver may precede its type in source order.
type goWalker struct {
	path          string
	source        []byte
	symbols       []store.Symbol
	relationships []store.Relationship
	typeIDs       map[string]string

	pendingMethods []pendingMethod
	pendingEmbeds  []pendingEmbed
}

type pendingMethod struct {
	symbolIdx    int
	receiverType string
}

type pendingEmbed struct {
	fromID   string
	typeName string
	line     int
}

func (w *goWalker) walkFile(root *sitter.Node) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		switch n.Type() {
		case "function_declaration":
			w.addFunction(n)
		case "method_declaration":
			w.addMethod(n)
		case "type_declaration":
			w.addTypeDecl(n)
		case "const_declaration":
			w.addValueDecl(n, "const_spec", store.KindConstant, "const")
		case "var_declaration":
			w.addValueDecl(n, "var_spec", store.KindVariable, "var")
		}
	}
}

func (w *goWalker) addFunction(n *sitter.Node) {
	name := w.fieldText(n, "name")
	if name == "" {
		return
	}
	sym := w.newSymbol(n, name, store.KindFunction)
	sym.Signature = w.declSignature(n)
	sym.DocComment = w.docComment(n)
	w.symbols = append(w.symbols, sym)
}

func (w *goWalker) addMethod(n *sitter.Node) {
	name := w.fieldText(n, "name")
	if name == "" {
		return
	}
	sym := w.newSymbol(n, name, store.KindMethod)
	sym.Signature = w.declSignature(n)
	sym.DocComment = w.docComment(n)
	w.symbols = append(w.symbols, sym)

	if recv := w.receiverTypeName(n); recv != "" {
		w.pendingMethods = append(w.pendingMethods, pendingMethod{
			symbolIdx:    len(w.symbols) - 1,
			receiverType: recv,
		})
	}
}

// addTypeDecl handles both single declarations and grouped
// "type ( ... )" blocks; every spec becomes its own symbol.
func (w *goWalker) addTypeDecl(decl *sitter.Node) {
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		spec := decl.NamedChild(i)
		if spec.Type() != "type_spec" && spec.Type() != "type_alias" {
			continue
		}
		name := w.fieldText(spec, "name")
		if name == "" {
			continue
		}

		typeNode := spec.ChildByFieldName("type")
		kind := store.KindType
		if typeNode != nil {
			switch typeNode.Type() {
			case "struct_type":
				kind = store.KindStruct
			case "interface_type":
				kind = store.KindInterface
			}
		}

		sym := w.newSymbol(spec, name, kind)
		sym.Signature = w.typeSignature(spec, typeNode, name)
		sym.DocComment = w.specDoc(spec, decl)
		w.symbols = append(w.symbols, sym)
		w.typeIDs[name] = sym.ID

		if typeNode == nil {
			continue
		}
		switch kind {
		case store.KindStruct:
			w.addStructMembers(typeNode, sym.ID)
		case store.KindInterface:
			w.addInterfaceMembers(typeNode, sym.ID)
		}
	}
}

// addValueDecl emits one symbol per declared identifier, covering both
// "const A = 1" and grouped or multi-name forms.
func (w *goWalker) addValueDecl(decl *sitter.Node, specType, kind, keyword string) {
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		spec := decl.NamedChild(i)
		if spec.Type() != specType {
			continue
		}
		sig := oneLine(keyword + " " + spec.Content(w.source))
		doc := w.specDoc(spec, decl)

		for j := 0; j < int(spec.NamedChildCount()); j++ {
			id := spec.NamedChild(j)
			if id.Type() != "identifier" {
				continue
			}
			name := id.Content(w.source)
			if name == "" || name == "_" {
				continue
			}
			sym := w.newSymbol(id, name, kind)
			sym.EndLine = int(spec.EndPoint().Row) + 1
			sym.EndColumn = int(spec.EndPoint().Column) + 1
			sym.Signature = sig
			sym.DocComment = doc
			w.symbols = append(w.symbols, sym)
		}
	}
}

func (w *goWalker) addStructMembers(structType *sitter.Node, parentID string) {
	list := firstNamedOfType(structType, "field_declaration_list")
	if list == nil {
		return
	}
	for i := 0; i < int(list.NamedChildCount()); i++ {
		field := list.NamedChild(i)
		if field.Type() != "field_declaration" {
			continue
		}

		named := false
		for j := 0; j < int(field.NamedChildCount()); j++ {
			c := field.NamedChild(j)
			if c.Type() != "field_identifier" {
				continue
			}
			named = true
			sym := w.newSymbol(c, c.Content(w.source), store.KindField)
			sym.ParentID = parentID
			sym.Signature = oneLine(field.Content(w.source))
			sym.DocComment = w.docComment(field)
			sym.EndLine = int(field.EndPoint().Row) + 1
			sym.EndColumn = int(field.EndPoint().Column) + 1
			w.symbols = append(w.symbols, sym)
		}
		if named {
			continue
		}

		// No field_identifier means an embedded type. The member is
		// named after the type's base name.
		typeNode := field.ChildByFieldName("type")
		if typeNode == nil {
			typeNode = field.NamedChild(0)
		}
		if typeNode == nil {
			continue
		}
		target := baseTypeName(typeNode.Content(w.source))
		if target == "" {
			continue
		}
		sym := w.newSymbol(field, target, store.KindField)
		sym.ParentID = parentID
		sym.Signature = oneLine(field.Content(w.source))
		w.symbols = append(w.symbols, sym)
		w.pendingEmbeds = append(w.pendingEmbeds, pendingEmbed{
			fromID:   parentID,
			typeName: strippedLocalName(typeNode.Content(w.source)),
			line:     int(field.StartPoint().Row) + 1,
		})
	}
}

func (w *goWalker) addInterfaceMembers(ifaceType *sitter.Node, parentID string) {
	for i := 0; i < int(ifaceType.NamedChildCount()); i++ {
		member := ifaceType.NamedChild(i)
		switch member.Type() {
		// The grammar renamed method_spec to method_elem; accept both.
		case "method_spec", "method_elem":
			name := w.fieldText(member, "name")
			if name == "" {
				continue
			}
			sym := w.newSymbol(member, name, store.KindMethod)
			sym.ParentID = parentID
			sym.Signature = oneLine(member.Content(w.source))
			sym.DocComment = w.docComment(member)
			w.symbols = append(w.symbols, sym)
		// Embedded interfaces appear bare or wrapped depending on the
		// grammar generation.
		case "type_identifier", "qualified_type", "interface_type_name",
			"type_elem", "constraint_elem":
			w.pendingEmbeds = append(w.pendingEmbeds, pendingEmbed{
				fromID:   parentID,
				typeName: strippedLocalName(member.Content(w.source)),
				line:     int(member.StartPoint().Row) + 1,
			})
		}
	}
}

// resolveLocalTargets links methods to their receiver type and turns
// embedded members into relationships, for targets declared in this
// file.
func (w *goWalker) resolveLocalTargets() {
	for _, pm := range w.pendingMethods {
		if id, ok := w.typeIDs[pm.receiverType]; ok {
			w.symbols[pm.symbolIdx].ParentID = id
		}
	}
	for _, pe := range w.pendingEmbeds {
		toID, ok := w.typeIDs[pe.typeName]
		if !ok {
			continue
		}
		w.relationships = append(w.relationships, store.Relationship{
			ID:           store.GenerateRelationshipID(pe.fromID, toID, store.RelEmbeds),
			FromSymbolID: pe.fromID,
			ToSymbolID:   toID,
			Kind:         store.RelEmbeds,
			Confidence:   1.0,
			FilePath:     w.path,
			LineNumber:   pe.line,
		})
	}
}

func (w *goWalker) newSymbol(n *sitter.Node, name, kind string) store.Symbol {
	startLine := int(n.StartPoint().Row) + 1
	startCol := int(n.StartPoint().Column) + 1
	return store.Symbol{
		ID:          store.GenerateSymbolID(w.path, name, kind, startLine, startCol),
		Name:        name,
		Kind:        kind,
		FilePath:    w.path,
		StartLine:   startLine,
		StartColumn: startCol,
		EndLine:     int(n.EndPoint().Row) + 1,
		EndColumn:   int(n.EndPoint().Column) + 1,
		Visibility:  visibilityOf(name),
		ContentType: store.ContentTypeCode,
	}
}

// declSignature returns the declaration head up to the body, collapsed
// to one line, so multi-line parameter lists stay intact.
func (w *goWalker) declSignature(n *sitter.Node) string {
	end := n.EndByte()
	if body := n.ChildByFieldName("body"); body != nil {
		end = body.StartByte()
	}
	start := n.StartByte()
	if start >= end || int(end) > len(w.source) {
		return ""
	}
	return oneLine(string(w.source[start:end]))
}

func (w *goWalker) typeSignature(spec, typeNode *sitter.Node, name string) string {
	if spec.Type() == "type_alias" {
		return oneLine("type " + spec.Content(w.source))
	}
	if typeNode == nil {
		return "type " + name
	}
	switch typeNode.Type() {
	case "struct_type":
		return "type " + name + " struct"
	case "interface_type":
		return "type " + name + " interface"
	default:
		return oneLine("type " + name + " " + typeNode.Content(w.source))
	}
}

// docComment collects the contiguous comment block directly above a
// node. Directive comments like //go:generate are dropped.
func (w *goWalker) docComment(n *sitter.Node) string {
	var parts []string
	row := n.StartPoint().Row
	for prev := n.PrevNamedSibling(); prev != nil && prev.Type() == "comment"; prev = prev.PrevNamedSibling() {
		if prev.EndPoint().Row+1 != row {
			break
		}
		row = prev.StartPoint().Row
		if text := cleanComment(prev.Content(w.source)); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "\n")
}

// specDoc prefers the comment attached to the spec inside a grouped
// declaration, falling back to the declaration's own doc.
func (w *goWalker) specDoc(spec, decl *sitter.Node) string {
	if doc := w.docComment(spec); doc != "" {
		return doc
	}
	return w.docComment(decl)
}

func (w *goWalker) fieldText(n *sitter.Node, field string) string {
	c := n.ChildByFieldName(field)
	if c == nil {
		return ""
	}
	return c.Content(w.source)
}

// receiverTypeName digs the receiver's type name out of a method
// declaration, dropping pointer stars and type parameters.
func (w *goWalker) receiverTypeName(method *sitter.Node) string {
	recv := method.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	decl := firstNamedOfType(recv, "parameter_declaration")
	if decl == nil {
		return ""
	}
	t := decl.ChildByFieldName("type")
	if t == nil {
		return ""
	}
	return strippedLocalName(t.Content(w.source))
}

func firstNamedOfType(n *sitter.Node, nodeType string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == nodeType {
			return c
		}
	}
	return nil
}

// strippedLocalName reduces a type expression to a bare local name:
// "*Tree[T]" becomes "Tree", "pkg.Conn" stays qualified and therefore
// never resolves locally.
func strippedLocalName(typeExpr string) string {
	s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(typeExpr), "*"))
	if i := strings.IndexByte(s, '['); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// baseTypeName is the member name an embedded field gets: the final
// identifier of the type expression.
func baseTypeName(typeExpr string) string {
	s := strippedLocalName(typeExpr)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		s = s[i+1:]
	}
	return s
}

func cleanComment(text string) string {
	text = strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(text, "//"):
		text = strings.TrimPrefix(text, "//")
	case strings.HasPrefix(text, "/*"):
		text = strings.TrimSuffix(strings.TrimPrefix(text, "/*"), "*/")
	}
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "go:") || strings.HasPrefix(text, "nolint") {
		return ""
	}
	return text
}

func visibilityOf(name string) string {
	r, _ := utf8.DecodeRuneInString(name)
	if unicode.IsUpper(r) {
		return "public"
	}
	return "private"
}

// oneLine collapses whitespace runs to single spaces and caps length
// so signatures stay index-friendly.
func oneLine(s string) string {
	collapsed := strings.Join(strings.Fields(s), " ")
	runes := []rune(collapsed)
	if len(runes) > signatureLen {
		return string(runes[:signatureLen])
	}
	return collapsed
}
