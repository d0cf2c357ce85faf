package viz

import (
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/robodesc/internal/kinematics"
	"github.com/san-kum/robodesc/internal/model"
	"github.com/san-kum/robodesc/internal/spatial"
)

const orbitStep = math.Pi / 24

type browser struct {
	m        *model.Model
	entries  []TreeEntry
	poses    []spatial.Pose
	sites    []spatial.Pose
	subtree  []float64
	total    float64
	cursor   int
	theme    int
	cam      *Camera
	width    int
	height   int
	showView bool
}

func newBrowser(m *model.Model) browser {
	subtree := kinematics.SubtreeMass(m)
	total := 0.0
	if len(subtree) > 0 {
		total = subtree[0]
	}
	poses := kinematics.WorldPoses(m)
	return browser{
		m:        m,
		entries:  Tree(m),
		poses:    poses,
		sites:    kinematics.SitePoses(m, poses),
		subtree:  subtree,
		total:    total,
		cam:      NewCamera(),
		width:    100,
		height:   30,
		showView: true,
	}
}

func (b browser) Init() tea.Cmd { return nil }

func (b browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		b.width, b.height = msg.Width, msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return b, tea.Quit
		case "up", "k":
			if b.cursor > 0 {
				b.cursor--
			}
		case "down", "j":
			if b.cursor < len(b.entries)-1 {
				b.cursor++
			}
		case "home", "g":
			b.cursor = 0
		case "end", "G":
			b.cursor = len(b.entries) - 1
		case "left", "h":
			b.cam.Orbit(-orbitStep, 0)
		case "right", "l":
			b.cam.Orbit(orbitStep, 0)
		case "pgup":
			b.cam.Orbit(0, orbitStep)
		case "pgdown":
			b.cam.Orbit(0, -orbitStep)
		case "+", "=":
			b.cam.ZoomIn()
		case "-":
			b.cam.ZoomOut()
		case "t":
			b.theme = (b.theme + 1) % len(Themes)
		case "v":
			b.showView = !b.showView
		}
	}
	return b, nil
}

// selected returns the body under the cursor.
func (b browser) selected() int {
	if len(b.entries) == 0 {
		return -1
	}
	return b.entries[b.cursor].Body
}

func (b browser) View() string {
	p := newPalette(Themes[b.theme])
	title := p.title.Render("ROBODESC") + "  " + p.muted.Render(b.m.Name)

	listWidth := b.width / 3
	if listWidth < 24 {
		listWidth = 24
	}
	rows := b.height - 6
	if rows < 5 {
		rows = 5
	}

	left := p.panel.Width(listWidth).Render(b.viewList(p, listWidth-4, rows))
	right := p.panel.Render(b.viewDetail(p))
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	if b.showView {
		w := b.width - listWidth - 8
		if w > 20 {
			view := p.panel.Render(RenderSkeleton(b.m, b.cam, w/2, rows/2, b.selected()))
			body = lipgloss.JoinHorizontal(lipgloss.Top, body, view)
		}
	}

	hints := KeyHint.Render("j/k select  h/l orbit  +/- zoom  v view  t theme (" + Themes[b.theme].Name + ")  q quit")
	return "\n " + title + "\n" + body + "\n " + hints + "\n"
}

func (b browser) viewList(p palette, width, rows int) string {
	start := 0
	if b.cursor >= rows {
		start = b.cursor - rows + 1
	}
	end := start + rows
	if end > len(b.entries) {
		end = len(b.entries)
	}
	var s strings.Builder
	for i := start; i < end; i++ {
		e := b.entries[i]
		line := truncate(e.Prefix+bodyLabel(b.m, e.Body), width)
		if i == b.cursor {
			s.WriteString(p.selected.Render(line))
		} else {
			s.WriteString(p.normal.Render(line))
		}
		if i < end-1 {
			s.WriteByte('\n')
		}
	}
	return s.String()
}

func (b browser) viewDetail(p palette) string {
	id := b.selected()
	if id < 0 {
		return p.muted.Render("empty model")
	}
	body := &b.m.Bodies[id]
	var s strings.Builder
	field := func(label, value string) {
		s.WriteString(p.label.Render(fmt.Sprintf("%-10s", label)) + p.value.Render(value) + "\n")
	}

	s.WriteString(p.title.Render(bodyLabel(b.m, id)) + "\n")
	s.WriteString(Separator(30, p.muted) + "\n")
	if body.Parent >= 0 {
		field("parent", bodyLabel(b.m, body.Parent))
	}
	if body.ChildClass != "" {
		field("class", body.ChildClass)
	}
	field("pos", vecString(body.Pose.Pos[:]))
	q := body.Pose.Quat
	field("quat", vecString([]float64{q.W, q.V[0], q.V[1], q.V[2]}))
	field("world", vecString(b.poses[id].Pos[:]))
	field("mass", fmt.Sprintf("%.4g", kinematics.BodyMass(b.m, id)))
	field("subtree", fmt.Sprintf("%.4g", b.subtree[id]))
	if b.total > 0 {
		s.WriteString(p.label.Render(fmt.Sprintf("%-10s", "share")) + Bar(b.subtree[id]/b.total, 20) + "\n")
	}
	if body.Mocap {
		s.WriteString(p.warn.Render("mocap body") + "\n")
	}

	if len(body.Joints) > 0 {
		s.WriteString("\n" + p.title.Render("joints") + "\n")
		for _, j := range body.Joints {
			jt := &b.m.Joints[j]
			rng := "unlimited"
			if jt.IsLimited(b.m.Compiler.AutoLimits) && jt.Range != nil {
				rng = fmt.Sprintf("[%.4g, %.4g]", jt.Range[0], jt.Range[1])
			}
			s.WriteString(fmt.Sprintf("  %s %s %s\n", p.normal.Render(jt.Name), p.muted.Render(string(jt.Type)), p.value.Render(rng)))
		}
	}
	if len(body.Geoms) > 0 {
		s.WriteString("\n" + p.title.Render("geoms") + "\n")
		for _, g := range body.Geoms {
			geom := &b.m.Geoms[g]
			desc := string(geom.Type)
			if geom.Mesh != "" {
				desc += " " + geom.Mesh
			}
			s.WriteString(fmt.Sprintf("  %s %s %s\n", p.normal.Render(geom.Name), p.muted.Render(desc), p.value.Render(vecString(geom.Size))))
		}
	}
	if len(body.Sites) > 0 {
		s.WriteString("\n" + p.title.Render("sites") + "\n")
		for _, si := range body.Sites {
			site := &b.m.Sites[si]
			world := b.sites[si].Pos
			s.WriteString(fmt.Sprintf("  %s %s %s\n", p.normal.Render(site.Name), p.muted.Render(vecString(site.Pose.Pos[:])), p.value.Render("world "+vecString(world[:]))))
		}
	}
	return strings.TrimRight(s.String(), "\n")
}

func vecString(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%.3g", x)
	}
	return strings.Join(parts, " ")
}

// RunBrowser opens the interactive body browser on the terminal.
func RunBrowser(m *model.Model) error {
	_, err := tea.NewProgram(newBrowser(m), tea.WithAltScreen()).Run()
	return err
}
