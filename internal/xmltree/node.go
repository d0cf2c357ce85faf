// Package xmltree is a small ordered XML element tree.
//
// Attribute order and element order are preserved so that documents can be
// spliced (include pre-pass) and written back without reshuffling. Text
// content, comments and processing instructions are not kept: description
// documents carry all data in attributes.
package xmltree

import "errors"

var (
	// ErrMalformed indicates a document that is not well-formed.
	ErrMalformed = errors.New("xmltree: malformed document")
)

type Attr struct {
	Name  string
	Value string
}

type Node struct {
	Tag      string
	Attrs    []Attr
	Children []*Node

	// File and Line locate the start tag in its source document.
	File string
	Line int
}

func New(tag string, attrs ...Attr) *Node {
	return &Node{Tag: tag, Attrs: attrs}
}

func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Set replaces the value of an existing attribute or appends a new one.
func (n *Node) Set(name, value string) {
	for i := range n.Attrs {
		if n.Attrs[i].Name == name {
			n.Attrs[i].Value = value
			return
		}
	}
	n.Attrs = append(n.Attrs, Attr{Name: name, Value: value})
}

func (n *Node) Delete(name string) {
	for i := range n.Attrs {
		if n.Attrs[i].Name == name {
			n.Attrs = append(n.Attrs[:i], n.Attrs[i+1:]...)
			return
		}
	}
}

func (n *Node) Append(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// Clone returns a deep copy of the subtree rooted at n.
func (n *Node) Clone() *Node {
	c := &Node{
		Tag:   n.Tag,
		Attrs: make([]Attr, len(n.Attrs)),
		File:  n.File,
		Line:  n.Line,
	}
	copy(c.Attrs, n.Attrs)
	if len(n.Children) > 0 {
		c.Children = make([]*Node, len(n.Children))
		for i, ch := range n.Children {
			c.Children[i] = ch.Clone()
		}
	}
	return c
}

// Walk visits n and its descendants depth-first. Returning false from fn
// skips the children of the visited node.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, ch := range n.Children {
		ch.Walk(fn)
	}
}

func (n *Node) ChildrenByTag(tag string) []*Node {
	var out []*Node
	for _, ch := range n.Children {
		if ch.Tag == tag {
			out = append(out, ch)
		}
	}
	return out
}
