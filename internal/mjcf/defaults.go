package mjcf

import (
	"fmt"
	"math"

	"github.com/san-kum/robodesc/internal/model"
	"github.com/san-kum/robodesc/internal/xmltree"
)

// defaultTags are the elements a default class may carry overrides for.
var defaultTags = map[string]bool{
	"mesh":     true,
	"material": true,
	"joint":    true,
	"geom":     true,
	"site":     true,
	"motor":    true,
	"position": true,
	"velocity": true,
	"general":  true,
}

const deg = math.Pi / 180

type defaults struct {
	classes []model.DefaultClass
	index   map[string]int
}

func newDefaults() *defaults {
	return &defaults{
		classes: []model.DefaultClass{{Name: model.MainClass, Parent: -1, Elements: map[string][]model.Attr{}}},
		index:   map[string]int{model.MainClass: 0},
	}
}

// decode adds the classes declared by n. A top-level <default> without a
// class, or with class "main", extends the main class.
func (d *defaults) decode(n *xmltree.Node, parent int) error {
	src := model.Source{File: n.File, Line: n.Line}
	for _, a := range n.Attrs {
		if a.Name != "class" {
			return malformed(src, n.Tag, "", "unexpected attribute %q", a.Name)
		}
	}
	name, hasName := n.Attr("class")
	var id int
	switch {
	case parent < 0 && (!hasName || name == model.MainClass):
		id = 0
		if d.classes[0].Src.File == "" {
			d.classes[0].Src = src
		}
	case !hasName || name == "":
		return malformed(src, n.Tag, "", "nested default class needs a class attribute")
	default:
		if _, dup := d.index[name]; dup {
			return &model.ElementError{Src: src, Tag: n.Tag, Name: name, Wrapped: fmt.Errorf("%w: default class %q", model.ErrDuplicateName, name)}
		}
		if parent < 0 {
			parent = 0
		}
		id = len(d.classes)
		d.classes = append(d.classes, model.DefaultClass{Name: name, Parent: parent, Elements: map[string][]model.Attr{}, Src: src})
		d.index[name] = id
	}

	for _, ch := range n.Children {
		if ch.Tag == "default" {
			if err := d.decode(ch, id); err != nil {
				return err
			}
			continue
		}
		if !defaultTags[ch.Tag] {
			return malformed(model.Source{File: ch.File, Line: ch.Line}, ch.Tag, "", "element not allowed in default class %q", d.classes[id].Name)
		}
		if len(ch.Children) > 0 {
			return malformed(model.Source{File: ch.File, Line: ch.Line}, ch.Tag, "", "default element must be empty")
		}
		own := ownAttrs(ch)
		for _, a := range own {
			if a.Name == "name" {
				return malformed(model.Source{File: ch.File, Line: ch.Line}, ch.Tag, "", "default element cannot be named")
			}
		}
		cls := &d.classes[id]
		cls.Elements[ch.Tag] = merge(cls.Elements[ch.Tag], own)
	}
	return nil
}

func (d *defaults) lookup(name string) (int, bool) {
	id, ok := d.index[name]
	return id, ok
}

// chain returns the class indices from main down to id.
func (d *defaults) chain(id int) []int {
	var out []int
	for cur := id; cur >= 0; cur = d.classes[cur].Parent {
		out = append(out, cur)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// attrs returns the attributes class id supplies for tag, inherited values
// first.
func (d *defaults) attrs(id int, tag string) []model.Attr {
	var out []model.Attr
	for _, c := range d.chain(id) {
		out = merge(out, d.classes[c].Elements[tag])
	}
	return out
}

// toRadians rewrites the orientation attributes stored in every class so
// that the classes hold radians. Joint range and ref stay raw: whether they
// are angles depends on the type of the joint that finally uses them.
func (d *defaults) toRadians() error {
	for id := range d.classes {
		cls := &d.classes[id]
		for tag, attrs := range cls.Elements {
			for i := range attrs {
				var err error
				switch attrs[i].Name {
				case "euler":
					attrs[i].Value, err = scaleAngles(attrs[i].Value, 0, 1, 2)
				case "axisangle":
					attrs[i].Value, err = scaleAngles(attrs[i].Value, 3)
				default:
					continue
				}
				if err != nil {
					return malformed(cls.Src, "default", cls.Name, "%s attribute %s: %v", tag, attrs[i].Name, err)
				}
			}
		}
	}
	return nil
}

// modelClasses returns a copy of the classes for the model. With degree set,
// joint range and ref of classes whose own joint type is angular are given
// in radians so the canonical document states them in radian units. The
// decoder never resolves joints from this copy.
func (d *defaults) modelClasses(degree bool) ([]model.DefaultClass, error) {
	out := make([]model.DefaultClass, len(d.classes))
	for id, cls := range d.classes {
		cp := cls
		cp.Elements = make(map[string][]model.Attr, len(cls.Elements))
		for tag, attrs := range cls.Elements {
			cp.Elements[tag] = append([]model.Attr(nil), attrs...)
		}
		if degree && d.angularJoint(id) {
			attrs := cp.Elements["joint"]
			for i := range attrs {
				switch attrs[i].Name {
				case "range", "ref", "springref":
					v, err := scaleAngles(attrs[i].Value, -1)
					if err != nil {
						return nil, malformed(cls.Src, "default", cls.Name, "joint attribute %s: %v", attrs[i].Name, err)
					}
					attrs[i].Value = v
				}
			}
		}
		out[id] = cp
	}
	return out, nil
}

func (d *defaults) angularJoint(id int) bool {
	typ := string(model.Hinge)
	for _, a := range d.attrs(id, "joint") {
		if a.Name == "type" {
			typ = a.Value
		}
	}
	return typ == string(model.Hinge) || typ == string(model.Ball)
}

// scaleAngles converts the listed positions of a number list from degrees
// to radians; -1 converts all of them.
func scaleAngles(s string, idx ...int) (string, error) {
	vals, err := parseFloats(s)
	if err != nil {
		return s, err
	}
	if len(idx) == 1 && idx[0] == -1 {
		for i := range vals {
			vals[i] *= deg
		}
		return formatFloats(vals...), nil
	}
	for _, i := range idx {
		if i < len(vals) {
			vals[i] *= deg
		}
	}
	return formatFloats(vals...), nil
}
