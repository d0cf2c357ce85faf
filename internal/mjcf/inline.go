package mjcf

import "github.com/san-kum/robodesc/internal/model"

// Inline returns a copy of m with every default class removed. Elements
// already carry their resolved values, so the copy encodes to a document
// without a <default> section that decodes to the same model. m is left
// untouched.
func Inline(m *model.Model) (*model.Model, error) {
	c, err := m.Clone()
	if err != nil {
		return nil, err
	}
	c.Defaults = []model.DefaultClass{{Name: model.MainClass, Parent: -1, Elements: map[string][]model.Attr{}}}

	// Elements without a class (a <freejoint>) stay that way.
	toMain := func(class *string) {
		if *class != "" {
			*class = model.MainClass
		}
	}
	for i := range c.Bodies {
		c.Bodies[i].ChildClass = ""
	}
	for i := range c.Joints {
		toMain(&c.Joints[i].Class)
	}
	for i := range c.Geoms {
		toMain(&c.Geoms[i].Class)
	}
	for i := range c.Sites {
		toMain(&c.Sites[i].Class)
	}
	for i := range c.Actuators {
		toMain(&c.Actuators[i].Class)
	}
	for i := range c.Meshes {
		toMain(&c.Meshes[i].Class)
	}
	for i := range c.Materials {
		toMain(&c.Materials[i].Class)
	}
	return c, nil
}
