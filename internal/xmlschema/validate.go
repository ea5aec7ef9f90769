package xmlschema

import (
	"bytes"
	"embed"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gurkanbulca/taskdesk/internal/models"
)

//go:embed schemas/*.xsd
var bundled embed.FS

const xsiNamespace = "http://www.w3.org/2001/XMLSchema-instance"

// ErrInvalidDocument wraps every validation failure.
var ErrInvalidDocument = errors.New("document does not conform to schema")

// ValidationError locates a single schema violation.
type ValidationError struct {
	Path string
	Line int
	Msg  string
}

func (e *ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s (line %d): %s", e.Path, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Msg)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidDocument }

type node struct {
	name     string
	line     int
	attrs    []xml.Attr
	children []*node
	text     strings.Builder
}

// Validate checks that data is well-formed XML conforming to the schema.
func (s *Schema) Validate(data []byte) error {
	root, err := parseDocument(data)
	if err != nil {
		return err
	}
	decl, ok := s.roots[root.name]
	if !ok {
		return &ValidationError{Path: "/" + root.name, Line: root.line, Msg: "unexpected root element"}
	}
	return validateNode(root, decl, "")
}

// utf8BOM is allowed before the XML declaration.
var utf8BOM = []byte("\xef\xbb\xbf")

func parseDocument(data []byte) (*node, error) {
	dec := xml.NewDecoder(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	var (
		stack []*node
		root  *node
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: malformed XML: %v", ErrInvalidDocument, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			line, _ := dec.InputPos()
			n := &node{name: t.Name.Local, line: line, attrs: t.Attr}
			if len(stack) == 0 {
				if root != nil {
					return nil, &ValidationError{Path: "/" + n.name, Line: line, Msg: "document has more than one root element"}
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			} else if len(bytes.TrimSpace(t)) > 0 {
				return nil, fmt.Errorf("%w: text outside the root element", ErrInvalidDocument)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidDocument)
	}
	return root, nil
}

func validateNode(n *node, decl *elementDecl, parentPath string) error {
	path := parentPath + "/" + n.name
	for _, a := range n.attrs {
		if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" || a.Name.Space == xsiNamespace {
			continue
		}
		return &ValidationError{Path: path, Line: n.line, Msg: fmt.Sprintf("attribute %q is not allowed", a.Name.Local)}
	}

	if decl.simple != "" {
		if len(n.children) > 0 {
			return &ValidationError{Path: path, Line: n.line, Msg: "element must not contain child elements"}
		}
		if err := decl.simple.check(n.text.String()); err != nil {
			return &ValidationError{Path: path, Line: n.line, Msg: err.Error()}
		}
		return nil
	}

	if strings.TrimSpace(n.text.String()) != "" {
		return &ValidationError{Path: path, Line: n.line, Msg: "text content is not allowed here"}
	}

	i := 0
	for _, child := range decl.children {
		count := 0
		for i < len(n.children) && n.children[i].name == child.name {
			if child.max != unbounded && count == child.max {
				return &ValidationError{Path: path + "/" + child.name, Line: n.children[i].line,
					Msg: fmt.Sprintf("element occurs more than %d time(s)", child.max)}
			}
			if err := validateNode(n.children[i], child, path); err != nil {
				return err
			}
			count++
			i++
		}
		if count < child.min {
			return &ValidationError{Path: path, Line: n.line,
				Msg: fmt.Sprintf("missing required element %q", child.name)}
		}
	}
	if i < len(n.children) {
		extra := n.children[i]
		return &ValidationError{Path: path + "/" + extra.name, Line: extra.line, Msg: "unexpected element"}
	}
	return nil
}

// Validator holds one compiled schema per entity kind.
type Validator struct {
	schemas map[models.Kind]*Schema
}

// New compiles the bundled users and tasks schemas.
func New() (*Validator, error) {
	v := &Validator{schemas: make(map[models.Kind]*Schema, 2)}
	for _, kind := range []models.Kind{models.KindUsers, models.KindTasks} {
		raw, err := bundled.ReadFile("schemas/" + string(kind) + ".xsd")
		if err != nil {
			return nil, fmt.Errorf("read %s schema: %w", kind, err)
		}
		s, err := Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", kind, err)
		}
		v.schemas[kind] = s
	}
	return v, nil
}

// MustNew is New for package initialisation and tests.
func MustNew() *Validator {
	v, err := New()
	if err != nil {
		panic(err)
	}
	return v
}

// Validate returns nil when data conforms to the schema for kind; otherwise
// the error describes the first violation.
func (v *Validator) Validate(kind models.Kind, data []byte) error {
	s, ok := v.schemas[kind]
	if !ok {
		return fmt.Errorf("no schema for kind %q", kind)
	}
	return s.Validate(data)
}

// Valid is the boolean form of Validate.
func (v *Validator) Valid(kind models.Kind, data []byte) bool {
	return v.Validate(kind, data) == nil
}

// SchemaSource returns the raw bundled XSD for kind.
func SchemaSource(kind models.Kind) ([]byte, error) {
	return bundled.ReadFile("schemas/" + string(kind) + ".xsd")
}
