// Package storage keeps snapshots of loaded models on disk: the canonical
// document, its metadata and a joint table.
package storage

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/san-kum/robodesc/internal/kinematics"
	"github.com/san-kum/robodesc/internal/model"
)

const (
	modelFile  = "model.xml"
	metaFile   = "metadata.json"
	jointsFile = "joints.csv"
)

var ErrNoSnapshot = errors.New("storage: snapshot not found")

type Store struct {
	baseDir string
	now     func() time.Time
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, now: time.Now}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type Metadata struct {
	ID        string             `json:"id"`
	Model     string             `json:"model"`
	Source    string             `json:"source"`
	Files     []string           `json:"files,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
	Bodies    int                `json:"bodies"`
	Joints    int                `json:"joints"`
	Geoms     int                `json:"geoms"`
	NQ        int                `json:"nq"`
	Warnings  int                `json:"warnings"`
	Metrics   map[string]float64 `json:"metrics"`
}

// Save writes a snapshot of m. canonical is the encoded document; meta
// supplies Source, Files and Warnings, the rest is filled in from m.
func (s *Store) Save(m *model.Model, canonical []byte, meta Metadata) (string, error) {
	if err := s.Init(); err != nil {
		return "", err
	}
	name := idName(m.Name)
	now := s.now()
	base := fmt.Sprintf("%s_%d", name, now.Unix())
	id := base
	dir := filepath.Join(s.baseDir, id)
	for n := 2; ; n++ {
		err := os.Mkdir(dir, 0755)
		if err == nil {
			break
		}
		if !os.IsExist(err) {
			return "", err
		}
		id = fmt.Sprintf("%s_%d", base, n)
		dir = filepath.Join(s.baseDir, id)
	}

	com := kinematics.CenterOfMass(m)
	meta.ID = id
	meta.Model = m.Name
	meta.Timestamp = now
	meta.Bodies = len(m.Bodies)
	meta.Joints = len(m.Joints)
	meta.Geoms = len(m.Geoms)
	meta.NQ = m.NQ()
	meta.Metrics = map[string]float64{
		"total_mass": kinematics.TotalMass(m),
		"com_x":      com[0],
		"com_y":      com[1],
		"com_z":      com[2],
	}

	if err := os.WriteFile(filepath.Join(dir, modelFile), canonical, 0644); err != nil {
		return "", err
	}
	if err := writeFile(filepath.Join(dir, metaFile), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	}); err != nil {
		return "", err
	}
	if err := writeFile(filepath.Join(dir, jointsFile), func(w io.Writer) error {
		return WriteJointsCSV(w, m)
	}); err != nil {
		return "", err
	}
	return id, nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// List returns the stored snapshots, oldest first. Directories without
// readable metadata are skipped.
func (s *Store) List() ([]Metadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Metadata{}, nil
		}
		return nil, err
	}

	snaps := make([]Metadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		snaps = append(snaps, *meta)
	}
	sort.SliceStable(snaps, func(i, j int) bool {
		return snaps[i].Timestamp.Before(snaps[j].Timestamp)
	})
	return snaps, nil
}

func (s *Store) Load(id string) (*Metadata, error) {
	data, err := s.read(id, metaFile)
	if err != nil {
		return nil, err
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("storage: %s: %w", id, err)
	}
	return &meta, nil
}

// Document returns the canonical document stored for id.
func (s *Store) Document(id string) ([]byte, error) {
	return s.read(id, modelFile)
}

// idName turns a model name into a single path element. Anything besides
// letters, digits, '-' and '_' becomes '_'.
func idName(name string) string {
	if name == "" {
		return "model"
	}
	return strings.Map(func(r rune) rune {
		if r == '-' || r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, name)
}

func (s *Store) Exists(id string) bool {
	if id == "" || filepath.Base(id) != id {
		return false
	}
	_, err := os.Stat(filepath.Join(s.baseDir, id, metaFile))
	return err == nil
}

func (s *Store) read(id, file string) ([]byte, error) {
	if id == "" || filepath.Base(id) != id {
		return nil, fmt.Errorf("%w: %q", ErrNoSnapshot, id)
	}
	data, err := os.ReadFile(filepath.Join(s.baseDir, id, file))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %q", ErrNoSnapshot, id)
	}
	return data, err
}

// LoadJoints reads back the joint table of a snapshot.
func (s *Store) LoadJoints(id string) ([]JointRow, error) {
	data, err := s.read(id, jointsFile)
	if err != nil {
		return nil, err
	}
	return ReadJointsCSV(bytes.NewReader(data))
}

// JointRow is one line of the joint table.
type JointRow struct {
	Name       string      `json:"name"`
	Body       string      `json:"body"`
	Type       string      `json:"type"`
	QposOffset int         `json:"qpos_offset"`
	QposDim    int         `json:"qpos_dim"`
	Limited    bool        `json:"limited"`
	Range      *[2]float64 `json:"range,omitempty"`
	Damping    float64     `json:"damping"`
	Armature   float64     `json:"armature"`
}

var jointHeader = []string{"name", "body", "type", "qpos_offset", "qpos_dim", "limited", "range_lo", "range_hi", "damping", "armature"}

func JointRows(m *model.Model) []JointRow {
	off := m.QposOffsets()
	rows := make([]JointRow, len(m.Joints))
	for i := range m.Joints {
		j := &m.Joints[i]
		rows[i] = JointRow{
			Name:       j.Name,
			Type:       string(j.Type),
			QposOffset: off[i],
			QposDim:    j.QposDim(),
			Limited:    j.IsLimited(m.Compiler.AutoLimits),
			Range:      j.Range,
			Damping:    j.Damping,
			Armature:   j.Armature,
		}
		if j.Body >= 0 && j.Body < len(m.Bodies) {
			rows[i].Body = m.Bodies[j.Body].Name
		}
	}
	return rows
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func WriteJointsCSV(w io.Writer, m *model.Model) error {
	return WriteJointRows(w, JointRows(m))
}

func WriteJointRows(w io.Writer, rows []JointRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(jointHeader); err != nil {
		return err
	}
	for _, r := range rows {
		lo, hi := "", ""
		if r.Range != nil {
			lo, hi = formatFloat(r.Range[0]), formatFloat(r.Range[1])
		}
		record := []string{
			r.Name, r.Body, r.Type,
			strconv.Itoa(r.QposOffset), strconv.Itoa(r.QposDim),
			strconv.FormatBool(r.Limited), lo, hi,
			formatFloat(r.Damping), formatFloat(r.Armature),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ReadJointsCSV(r io.Reader) ([]JointRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(jointHeader)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("storage: joints: %w", err)
	}
	if len(records) < 2 {
		return []JointRow{}, nil
	}
	rows := make([]JointRow, 0, len(records)-1)
	for n, rec := range records[1:] {
		row, err := parseJointRow(rec)
		if err != nil {
			return nil, fmt.Errorf("storage: joints line %d: %w", n+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseJointRow(rec []string) (JointRow, error) {
	row := JointRow{Name: rec[0], Body: rec[1], Type: rec[2]}
	var err error
	if row.QposOffset, err = strconv.Atoi(rec[3]); err != nil {
		return row, err
	}
	if row.QposDim, err = strconv.Atoi(rec[4]); err != nil {
		return row, err
	}
	if row.Limited, err = strconv.ParseBool(rec[5]); err != nil {
		return row, err
	}
	if rec[6] != "" || rec[7] != "" {
		var rng [2]float64
		if rng[0], err = strconv.ParseFloat(rec[6], 64); err != nil {
			return row, err
		}
		if rng[1], err = strconv.ParseFloat(rec[7], 64); err != nil {
			return row, err
		}
		row.Range = &rng
	}
	if row.Damping, err = strconv.ParseFloat(rec[8], 64); err != nil {
		return row, err
	}
	if row.Armature, err = strconv.ParseFloat(rec[9], 64); err != nil {
		return row, err
	}
	return row, nil
}
