package xmltree

import (
	"bytes"
	"fmt"
	"io"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/xml"
)

var xmlEntities = map[string][]byte{
	"lt":   []byte("<"),
	"gt":   []byte(">"),
	"amp":  []byte("&"),
	"quot": []byte("\""),
	"apos": []byte("'"),
}

// SyntaxError locates a well-formedness error.
type SyntaxError struct {
	File string
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

func (e *SyntaxError) Unwrap() error {
	return ErrMalformed
}

// Parse reads one document and returns its root element.
func Parse(r io.Reader, file string) (*Node, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("xmltree: read %s: %w", file, err)
	}
	return ParseBytes(src, file)
}

func ParseBytes(src []byte, file string) (*Node, error) {
	// The lexer rewrites whitespace inside attribute values in place, so it
	// gets its own copy and src stays usable for line numbers.
	in := parse.NewInputBytes(parse.Copy(src))
	defer in.Restore()
	p := &parser{src: src, file: file, in: in, lex: xml.NewLexer(in), lastLine: 1}
	return p.run()
}

type parser struct {
	src  []byte
	file string
	in   *parse.Input
	lex  *xml.Lexer

	lastOff  int
	lastLine int

	root  *Node
	stack []*Node
}

func (p *parser) fail(off int, format string, a ...any) error {
	return &SyntaxError{File: p.file, Line: p.lineAt(off), Msg: fmt.Sprintf(format, a...)}
}

// lineAt converts a byte offset to a 1-based line number. Offsets are
// requested in increasing order, so counting resumes from the last one.
func (p *parser) lineAt(off int) int {
	if off > len(p.src) {
		off = len(p.src)
	}
	if off < p.lastOff {
		p.lastOff, p.lastLine = 0, 1
	}
	p.lastLine += bytes.Count(p.src[p.lastOff:off], []byte{'\n'})
	p.lastOff = off
	return p.lastLine
}

func (p *parser) run() (*Node, error) {
	var open *Node // start tag whose attributes are still being read
	inPI := false
	for {
		tt, data := p.lex.Next()
		end := p.in.Offset()
		start := end - len(data)
		switch tt {
		case xml.ErrorToken:
			if err := p.lex.Err(); err != io.EOF {
				return nil, p.fail(end, "%v", err)
			}
			if open != nil {
				return nil, p.fail(end, "unexpected end of document inside <%s>", open.Tag)
			}
			if len(p.stack) > 0 {
				return nil, p.fail(end, "unexpected end of document, <%s> not closed", p.top().Tag)
			}
			if p.root == nil {
				return nil, p.fail(end, "no root element")
			}
			return p.root, nil
		case xml.StartTagPIToken:
			inPI = true
		case xml.StartTagClosePIToken:
			inPI = false
		case xml.StartTagToken:
			if p.root != nil && len(p.stack) == 0 {
				return nil, p.fail(start, "content after root element <%s>", p.root.Tag)
			}
			open = &Node{Tag: string(p.lex.Text()), File: p.file, Line: p.lineAt(start)}
		case xml.AttributeToken:
			if inPI {
				continue
			}
			if open == nil {
				return nil, p.fail(start, "attribute outside of a start tag")
			}
			name := string(p.lex.Text())
			val := p.lex.AttrVal()
			if val == nil {
				return nil, p.fail(start, "attribute %q of <%s> has no value", name, open.Tag)
			}
			if len(val) >= 2 && (val[0] == '"' || val[0] == '\'') && val[len(val)-1] == val[0] {
				val = val[1 : len(val)-1]
			}
			if _, dup := open.Attr(name); dup {
				return nil, p.fail(start, "duplicate attribute %q on <%s>", name, open.Tag)
			}
			open.Attrs = append(open.Attrs, Attr{Name: name, Value: unescape(val)})
		case xml.StartTagCloseToken:
			p.push(open)
			p.stack = append(p.stack, open)
			open = nil
		case xml.StartTagCloseVoidToken:
			p.push(open)
			open = nil
		case xml.EndTagToken:
			name := string(p.lex.Text())
			if len(p.stack) == 0 {
				return nil, p.fail(start, "unexpected </%s>", name)
			}
			if top := p.top(); top.Tag != name {
				return nil, p.fail(start, "</%s> does not close <%s> (line %d)", name, top.Tag, top.Line)
			}
			p.stack = p.stack[:len(p.stack)-1]
		case xml.TextToken, xml.CDATAToken:
			if !parse.IsAllWhitespace(data) {
				return nil, p.fail(start, "unexpected text %q", string(bytes.TrimSpace(data)))
			}
		}
	}
}

var ampEntity = []byte("&amp;")

// unescape decodes character and entity references. ReplaceEntities keeps
// "&amp;" when it is followed by something entity-like, so that reference is
// split out first and decoded last.
func unescape(val []byte) string {
	if bytes.IndexByte(val, '&') < 0 {
		return string(val)
	}
	parts := bytes.Split(val, ampEntity)
	for i, part := range parts {
		parts[i] = parse.ReplaceEntities(parse.Copy(part), xmlEntities, nil)
	}
	return string(bytes.Join(parts, []byte{'&'}))
}

func (p *parser) top() *Node {
	return p.stack[len(p.stack)-1]
}

func (p *parser) push(n *Node) {
	if len(p.stack) == 0 {
		p.root = n
		return
	}
	parent := p.top()
	parent.Children = append(parent.Children, n)
}
