// Package xmlschema validates data documents against the XSD schemas bundled
// with the binary.
//
// Only the subset of XSD the data files need is understood: global and local
// element declarations, anonymous complex types with a sequence, minOccurs and
// maxOccurs, and a handful of builtin simple types. Compiling a schema that
// uses anything else fails instead of silently accepting documents.
package xmlschema

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrUnsupportedSchema = errors.New("unsupported schema construct")

const unbounded = -1

type simpleType string

const (
	typeString             simpleType = "string"
	typeLong               simpleType = "long"
	typeInt                simpleType = "int"
	typeNonNegativeInteger simpleType = "nonNegativeInteger"
)

// Schema is a compiled XSD document.
type Schema struct {
	roots map[string]*elementDecl
}

type elementDecl struct {
	name     string
	simple   simpleType // empty for complex elements
	children []*elementDecl
	min      int
	max      int
}

// Raw XSD structure as read by encoding/xml. Local names match regardless of
// the prefix bound to the XSD namespace.
type xsdSchema struct {
	XMLName  xml.Name     `xml:"schema"`
	Elements []xsdElement `xml:"element"`
}

type xsdElement struct {
	Name        string          `xml:"name,attr"`
	Type        string          `xml:"type,attr"`
	Ref         string          `xml:"ref,attr"`
	MinOccurs   string          `xml:"minOccurs,attr"`
	MaxOccurs   string          `xml:"maxOccurs,attr"`
	ComplexType *xsdComplexType `xml:"complexType"`
	SimpleType  *struct{}       `xml:"simpleType"`
}

type xsdComplexType struct {
	Sequence   *xsdSequence `xml:"sequence"`
	Choice     *struct{}    `xml:"choice"`
	All        *struct{}    `xml:"all"`
	Attributes []struct{}   `xml:"attribute"`
}

type xsdSequence struct {
	Elements []xsdElement `xml:"element"`
}

// Compile parses an XSD document.
func Compile(xsd []byte) (*Schema, error) {
	var raw xsdSchema
	if err := xml.NewDecoder(bytes.NewReader(xsd)).Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if len(raw.Elements) == 0 {
		return nil, fmt.Errorf("%w: schema declares no elements", ErrUnsupportedSchema)
	}

	s := &Schema{roots: make(map[string]*elementDecl, len(raw.Elements))}
	for _, e := range raw.Elements {
		decl, err := compileElement(e, true)
		if err != nil {
			return nil, err
		}
		s.roots[decl.name] = decl
	}
	return s, nil
}

func compileElement(e xsdElement, global bool) (*elementDecl, error) {
	if e.Ref != "" {
		return nil, fmt.Errorf("%w: element ref %q", ErrUnsupportedSchema, e.Ref)
	}
	if e.Name == "" {
		return nil, fmt.Errorf("%w: element without a name", ErrUnsupportedSchema)
	}
	if e.SimpleType != nil {
		return nil, fmt.Errorf("%w: inline simpleType on %q", ErrUnsupportedSchema, e.Name)
	}

	decl := &elementDecl{name: e.Name, min: 1, max: 1}
	if !global {
		var err error
		if decl.min, err = parseOccurs(e.MinOccurs, 1); err != nil {
			return nil, fmt.Errorf("element %q minOccurs: %w", e.Name, err)
		}
		if decl.max, err = parseOccurs(e.MaxOccurs, 1); err != nil {
			return nil, fmt.Errorf("element %q maxOccurs: %w", e.Name, err)
		}
		if decl.max != unbounded && decl.max < decl.min {
			return nil, fmt.Errorf("element %q: maxOccurs below minOccurs", e.Name)
		}
	}

	switch {
	case e.ComplexType != nil && e.Type != "":
		return nil, fmt.Errorf("element %q has both a type and a complexType", e.Name)
	case e.ComplexType != nil:
		ct := e.ComplexType
		if ct.Choice != nil || ct.All != nil || len(ct.Attributes) > 0 {
			return nil, fmt.Errorf("%w: complexType of %q", ErrUnsupportedSchema, e.Name)
		}
		if ct.Sequence != nil {
			for _, child := range ct.Sequence.Elements {
				c, err := compileElement(child, false)
				if err != nil {
					return nil, err
				}
				decl.children = append(decl.children, c)
			}
		}
	default:
		t, err := builtinType(e.Type)
		if err != nil {
			return nil, fmt.Errorf("element %q: %w", e.Name, err)
		}
		decl.simple = t
	}
	return decl, nil
}

func parseOccurs(v string, def int) (int, error) {
	switch v {
	case "":
		return def, nil
	case "unbounded":
		return unbounded, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid occurrence %q", v)
	}
	return n, nil
}

func builtinType(qname string) (simpleType, error) {
	if qname == "" {
		// An element without a type is xs:anyType; the data files never need it.
		return "", fmt.Errorf("%w: untyped element", ErrUnsupportedSchema)
	}
	local := qname
	if i := strings.IndexByte(qname, ':'); i >= 0 {
		local = qname[i+1:]
	}
	switch t := simpleType(local); t {
	case typeString, typeLong, typeInt, typeNonNegativeInteger:
		return t, nil
	default:
		return "", fmt.Errorf("%w: type %q", ErrUnsupportedSchema, qname)
	}
}

func (t simpleType) check(text string) error {
	v := strings.TrimSpace(text)
	switch t {
	case typeLong:
		_, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%q is not a valid xs:long", v)
		}
	case typeInt:
		_, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return fmt.Errorf("%q is not a valid xs:int", v)
		}
	case typeNonNegativeInteger:
		_, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%q is not a valid xs:nonNegativeInteger", v)
		}
	}
	return nil
}
