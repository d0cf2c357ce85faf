package xmltree

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/tdewolff/parse/v2/xml"
)

const indentUnit = "  "

// Write serializes n as an indented document. Elements without children are
// written self-closing.
func Write(w io.Writer, n *Node) error {
	bw := bufio.NewWriter(w)
	var buf []byte
	writeNode(bw, n, 0, &buf)
	return bw.Flush()
}

// Marshal is Write into a byte slice.
func Marshal(n *Node) []byte {
	var b bytes.Buffer
	_ = Write(&b, n)
	return b.Bytes()
}

func writeNode(w *bufio.Writer, n *Node, depth int, buf *[]byte) {
	indent := strings.Repeat(indentUnit, depth)
	w.WriteString(indent)
	w.WriteByte('<')
	w.WriteString(n.Tag)
	for _, a := range n.Attrs {
		w.WriteByte(' ')
		w.WriteString(a.Name)
		w.WriteByte('=')
		w.Write(xml.EscapeAttrVal(buf, escapeMarkup(a.Value)))
	}
	if len(n.Children) == 0 {
		w.WriteString("/>\n")
		return
	}
	w.WriteString(">\n")
	for _, ch := range n.Children {
		writeNode(w, ch, depth+1, buf)
	}
	w.WriteString(indent)
	w.WriteString("</")
	w.WriteString(n.Tag)
	w.WriteString(">\n")
}

var markupEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	"\t", "&#9;",
	"\n", "&#10;",
	"\r", "&#13;",
)

// escapeMarkup handles the characters EscapeAttrVal leaves alone; quotes are
// taken care of there. Whitespace other than spaces is written as character
// references since readers normalize it to spaces in attribute values.
func escapeMarkup(s string) []byte {
	if !strings.ContainsAny(s, "&<\t\n\r") {
		return []byte(s)
	}
	return []byte(markupEscaper.Replace(s))
}
