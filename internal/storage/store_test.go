package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/go-cmp/cmp"

	"github.com/san-kum/robodesc/internal/model"
	"github.com/san-kum/robodesc/internal/spatial"
)

func testModel() *model.Model {
	m := model.New("pendulum")
	base := m.AddBody(0, model.Body{
		Name:     "base",
		Pose:     spatial.Pose{Pos: mgl64.Vec3{0, 0, 1}, Quat: mgl64.QuatIdent()},
		Inertial: &model.Inertial{Pose: spatial.Identity(), Mass: 1.5},
	})
	m.AddJoint(model.Joint{Name: "swing", Body: base, Type: model.Hinge, Axis: mgl64.Vec3{0, 1, 0}, Range: &[2]float64{-1.5, 1.5}, Damping: 0.25})
	m.AddJoint(model.Joint{Name: "spin", Body: base, Type: model.Ball, Armature: 0.01})
	m.AddGeom(model.Geom{Name: "bob", Body: base, Type: model.Sphere, Size: []float64{0.1}, Pose: spatial.Identity()})
	m.Actuators = append(m.Actuators, model.Actuator{Name: "drive", Kind: model.Motor, Joint: "swing", Gear: 1, CtrlRange: &[2]float64{-1, 1}})
	m.Keyframes = append(m.Keyframes, model.Keyframe{Name: "rest", Qpos: []float64{0, 1, 0, 0, 0}})
	return m
}

func fixedStore(t *testing.T, at time.Time) *Store {
	t.Helper()
	st := New(filepath.Join(t.TempDir(), "snapshots"))
	st.now = func() time.Time { return at }
	return st
}

func TestStoreSaveLoad(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st := fixedStore(t, at)
	m := testModel()
	doc := []byte("<mujoco model=\"pendulum\"/>\n")

	id, err := st.Save(m, doc, Metadata{Source: "pendulum.xml", Files: []string{"pendulum.xml"}, Warnings: 2})
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if id != "pendulum_1772366400" {
		t.Errorf("unexpected id %q", id)
	}

	meta, err := st.Load(id)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.Model != "pendulum" || meta.Source != "pendulum.xml" || meta.Warnings != 2 {
		t.Errorf("unexpected metadata %+v", meta)
	}
	if meta.Bodies != 2 || meta.Joints != 2 || meta.NQ != 5 {
		t.Errorf("counts = %d bodies, %d joints, nq %d", meta.Bodies, meta.Joints, meta.NQ)
	}
	if meta.Metrics["total_mass"] != 1.5 || meta.Metrics["com_z"] != 1 {
		t.Errorf("metrics = %v", meta.Metrics)
	}
	if !meta.Timestamp.Equal(at) {
		t.Errorf("timestamp = %v", meta.Timestamp)
	}

	got, err := st.Document(id)
	if err != nil {
		t.Fatalf("document failed: %v", err)
	}
	if !bytes.Equal(got, doc) {
		t.Errorf("document = %q", got)
	}

	joints, err := st.LoadJoints(id)
	if err != nil {
		t.Fatalf("load joints failed: %v", err)
	}
	if diff := cmp.Diff(JointRows(m), joints); diff != "" {
		t.Errorf("joint table mismatch (-want +got):\n%s", diff)
	}
}

func TestStoreUniqueIDs(t *testing.T) {
	st := fixedStore(t, time.Unix(100, 0))
	m := testModel()

	first, err := st.Save(m, nil, Metadata{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := st.Save(m, nil, Metadata{})
	if err != nil {
		t.Fatal(err)
	}
	if first != "pendulum_100" || second != "pendulum_100_2" {
		t.Errorf("ids = %q, %q", first, second)
	}
	if !st.Exists(second) || st.Exists("pendulum_100_3") {
		t.Error("Exists disagrees with saved snapshots")
	}
}

func TestStoreSanitizesName(t *testing.T) {
	st := fixedStore(t, time.Unix(300, 0))
	tests := []struct {
		name string
		want string
	}{
		{"../escaped", "___escaped_300"},
		{`a/b\c`, "a_b_c_300"},
		{"", "model_300"},
		{"arm-v2_left", "arm-v2_left_300"},
	}
	for _, tt := range tests {
		m := testModel()
		m.Name = tt.name
		id, err := st.Save(m, nil, Metadata{})
		if err != nil {
			t.Fatalf("save %q: %v", tt.name, err)
		}
		if id != tt.want {
			t.Errorf("id for %q = %q, want %q", tt.name, id, tt.want)
		}
		if !st.Exists(id) {
			t.Errorf("snapshot %q not found", id)
		}
		if _, err := os.Stat(filepath.Join(st.baseDir, id, metaFile)); err != nil {
			t.Errorf("snapshot %q not under the store: %v", id, err)
		}
	}
	if meta, err := st.Load("___escaped_300"); err != nil || meta.Model != "../escaped" {
		t.Errorf("metadata keeps the model name: %+v, %v", meta, err)
	}
}

func TestStoreList(t *testing.T) {
	st := fixedStore(t, time.Unix(200, 0))
	runs, err := st.List()
	if err != nil {
		t.Fatalf("list on missing dir: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected empty list, got %d", len(runs))
	}

	m := testModel()
	if _, err := st.Save(m, nil, Metadata{}); err != nil {
		t.Fatal(err)
	}
	st.now = func() time.Time { return time.Unix(100, 0) }
	m.Name = "earlier"
	if _, err := st.Save(m, nil, Metadata{}); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(st.baseDir, "junk"), 0755); err != nil {
		t.Fatal(err)
	}

	runs, err = st.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(runs))
	}
	if runs[0].Model != "earlier" || runs[1].Model != "pendulum" {
		t.Errorf("order = %s, %s", runs[0].Model, runs[1].Model)
	}
}

func TestStoreMissing(t *testing.T) {
	st := fixedStore(t, time.Unix(0, 0))
	for _, id := range []string{"nope", "", "../etc", "a/b"} {
		if _, err := st.Load(id); !errors.Is(err, ErrNoSnapshot) {
			t.Errorf("Load(%q) = %v, want ErrNoSnapshot", id, err)
		}
	}
}

func TestJointsCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJointsCSV(&buf, testModel()); err != nil {
		t.Fatal(err)
	}
	want := "name,body,type,qpos_offset,qpos_dim,limited,range_lo,range_hi,damping,armature\n" +
		"swing,base,hinge,0,1,true,-1.5,1.5,0.25,0\n" +
		"spin,base,ball,1,4,false,,,0,0.01\n"
	if buf.String() != want {
		t.Errorf("csv:\n%s\nwant:\n%s", buf.String(), want)
	}

	if _, err := ReadJointsCSV(strings.NewReader("name\nx\n")); err == nil {
		t.Error("expected error for short records")
	}
	bad := strings.Replace(want, "0.25", "lots", 1)
	if _, err := ReadJointsCSV(strings.NewReader(bad)); err == nil {
		t.Error("expected error for bad damping")
	}
}

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportJSON(&buf, testModel()); err != nil {
		t.Fatal(err)
	}
	var data ExportData
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if data.Model != "pendulum" || data.NQ != 5 || data.TotalMass != 1.5 {
		t.Errorf("header = %+v", data)
	}
	if len(data.Bodies) != 2 || data.Bodies[1].Parent != "world" || data.Bodies[1].Depth != 1 {
		t.Errorf("bodies = %+v", data.Bodies)
	}
	if data.Bodies[1].WorldPos != [3]float64{0, 0, 1} || data.Bodies[1].Quat != [4]float64{1, 0, 0, 0} {
		t.Errorf("base pose = %+v", data.Bodies[1])
	}
	if len(data.Geoms) != 1 || data.Geoms[0].Body != "base" {
		t.Errorf("geoms = %+v", data.Geoms)
	}
	if len(data.Actuators) != 1 || *data.Actuators[0].CtrlRange != [2]float64{-1, 1} {
		t.Errorf("actuators = %+v", data.Actuators)
	}
	if len(data.Keyframes) != 1 || data.Keyframes[0].Name != "rest" {
		t.Errorf("keyframes = %+v", data.Keyframes)
	}
}
