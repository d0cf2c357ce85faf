package viz

import (
	"fmt"
	"strings"

	"github.com/san-kum/robodesc/internal/model"
)

// TreeEntry is one body in display order.
type TreeEntry struct {
	Body   int
	Depth  int
	Prefix string
}

// Tree lists the bodies reachable from the world in depth-first order with
// the box-drawing prefix of each line.
func Tree(m *model.Model) []TreeEntry {
	if len(m.Bodies) == 0 {
		return nil
	}
	var out []TreeEntry
	seen := make([]bool, len(m.Bodies))
	var walk func(id, depth int, indent string, last bool)
	walk = func(id, depth int, indent string, last bool) {
		seen[id] = true
		prefix := ""
		next := ""
		if depth > 0 {
			if last {
				prefix, next = indent+"└── ", indent+"    "
			} else {
				prefix, next = indent+"├── ", indent+"│   "
			}
		}
		out = append(out, TreeEntry{Body: id, Depth: depth, Prefix: prefix})
		var kids []int
		for _, ch := range m.Bodies[id].Children {
			if ch > 0 && ch < len(m.Bodies) && !seen[ch] {
				kids = append(kids, ch)
			}
		}
		for i, ch := range kids {
			walk(ch, depth+1, next, i == len(kids)-1)
		}
	}
	walk(0, 0, "", true)
	return out
}

func bodyLabel(m *model.Model, id int) string {
	if name := m.Bodies[id].Name; name != "" {
		return name
	}
	return fmt.Sprintf("body%d", id)
}

// annotation summarizes what a body carries.
func annotation(m *model.Model, id int) string {
	b := &m.Bodies[id]
	var parts []string
	for _, j := range b.Joints {
		jt := &m.Joints[j]
		if jt.Name != "" {
			parts = append(parts, fmt.Sprintf("%s:%s", jt.Type, jt.Name))
		} else {
			parts = append(parts, string(jt.Type))
		}
	}
	if n := len(b.Geoms); n > 0 {
		parts = append(parts, plural(n, "geom"))
	}
	if n := len(b.Sites); n > 0 {
		parts = append(parts, plural(n, "site"))
	}
	if b.Mocap {
		parts = append(parts, "mocap")
	}
	return strings.Join(parts, " ")
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// RenderTree draws the body hierarchy as plain text.
func RenderTree(m *model.Model) string {
	var b strings.Builder
	for _, e := range Tree(m) {
		b.WriteString(e.Prefix)
		b.WriteString(bodyLabel(m, e.Body))
		if a := annotation(m, e.Body); a != "" {
			b.WriteString("  ")
			b.WriteString(a)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
