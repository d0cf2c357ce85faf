package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/edaniels/golog"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/robodesc/internal/assets"
	"github.com/san-kum/robodesc/internal/config"
	"github.com/san-kum/robodesc/internal/include"
	"github.com/san-kum/robodesc/internal/kinematics"
	"github.com/san-kum/robodesc/internal/mjcf"
	"github.com/san-kum/robodesc/internal/model"
	"github.com/san-kum/robodesc/internal/report"
	"github.com/san-kum/robodesc/internal/storage"
	"github.com/san-kum/robodesc/internal/validate"
	"github.com/san-kum/robodesc/internal/viz"
	"github.com/san-kum/robodesc/internal/xmltree"
)

var (
	configFile string
	profile    string
	dataDir    string
	logLevel   string

	strict        bool
	checkAssets   bool
	probeTextures bool
	workers       int
	meshDir       string
	textureDir    string

	format  string
	plot    bool
	inline  bool
	outFile string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "robodesc",
		Short:         "robot description loader and validator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file path (yaml)")
	pf.StringVar(&profile, "profile", "", "named configuration profile")
	pf.StringVar(&dataDir, "data", config.DefaultDataDir, "snapshot directory")
	pf.StringVar(&logLevel, "log-level", config.DefaultLogLevel, "debug, info, warn or error")
	pf.BoolVar(&strict, "strict", false, "treat warnings as errors")
	pf.BoolVar(&checkAssets, "check-assets", true, "resolve mesh and texture files")
	pf.BoolVar(&probeTextures, "probe-textures", false, "decode texture headers")
	pf.IntVar(&workers, "workers", 0, "asset resolver workers (0 = one per cpu)")
	pf.StringVar(&meshDir, "mesh-dir", "", "override the compiler meshdir")
	pf.StringVar(&textureDir, "texture-dir", "", "override the compiler texturedir")

	validateCmd := &cobra.Command{
		Use:   "validate [file...]",
		Short: "load and validate descriptions",
		Args:  cobra.MinimumNArgs(1),
		RunE:  validateFiles,
	}

	fmtCmd := &cobra.Command{
		Use:   "fmt [file]",
		Short: "print the canonical form of a description",
		Args:  cobra.ExactArgs(1),
		RunE:  formatFile,
	}
	fmtCmd.Flags().StringVarP(&outFile, "output", "o", "", "write to file instead of stdout")
	fmtCmd.Flags().BoolVar(&inline, "inline", false, "drop default classes and write every value on its element")

	flattenCmd := &cobra.Command{
		Use:   "flatten [file]",
		Short: "splice includes without interpreting the document",
		Args:  cobra.ExactArgs(1),
		RunE:  flattenFile,
	}
	flattenCmd.Flags().StringVarP(&outFile, "output", "o", "", "write to file instead of stdout")

	statsCmd := &cobra.Command{
		Use:   "stats [file]",
		Short: "summarize a description",
		Args:  cobra.ExactArgs(1),
		RunE:  statsFile,
	}
	statsCmd.Flags().StringVar(&format, "format", "", "human or json")
	statsCmd.Flags().BoolVar(&plot, "plot", false, "plot subtree mass per body")

	treeCmd := &cobra.Command{
		Use:   "tree [file]",
		Short: "print the body hierarchy",
		Args:  cobra.ExactArgs(1),
		RunE:  treeFile,
	}

	jointsCmd := &cobra.Command{
		Use:   "joints [file]",
		Short: "list joints and their qpos layout",
		Args:  cobra.ExactArgs(1),
		RunE:  jointsFile,
	}
	jointsCmd.Flags().BoolVar(&plot, "plot", false, "plot joint range widths")

	browseCmd := &cobra.Command{
		Use:   "browse [file]",
		Short: "browse bodies interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, _, err := loadModel(cmd, args[0])
			if err != nil {
				return err
			}
			return viz.RunBrowser(res.Model)
		},
	}

	snapshotCmd := &cobra.Command{
		Use:   "snapshot [file]",
		Short: "store the canonical form of a description",
		Args:  cobra.ExactArgs(1),
		RunE:  snapshotFile,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list snapshots",
		RunE:  listSnapshots,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [file|snapshot_id]",
		Short: "export entity tables to JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := modelFor(cmd, args[0])
			if err != nil {
				return err
			}
			return storage.ExportJSON(os.Stdout, m)
		},
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [snapshot_id|file]",
		Short: "export the joint table to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	profilesCmd := &cobra.Command{
		Use:   "profiles",
		Short: "list configuration profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSTRICT\tASSETS\tPROBE\tDEPTH\tWORKERS\tFORMAT")
			for _, name := range config.ListProfiles() {
				p := config.GetProfile(name)
				fmt.Fprintf(w, "%s\t%t\t%t\t%t\t%d\t%d\t%s\n",
					name, p.Strict, p.CheckAssets, p.ProbeTextures, p.MaxIncludeDepth, p.Workers, p.Report.Format)
			}
			return w.Flush()
		},
	}

	rootCmd.AddCommand(validateCmd, fmtCmd, flattenCmd, statsCmd, treeCmd, jointsCmd, browseCmd,
		snapshotCmd, listCmd, exportJSONCmd, exportCSVCmd, profilesCmd)
	return rootCmd
}

// settings layers defaults, profile, config file and changed flags.
func settings(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if profile != "" {
		cfg = config.GetProfile(profile)
		if cfg == nil {
			return nil, fmt.Errorf("unknown profile: %s (available: %v)", profile, config.ListProfiles())
		}
	}
	if configFile != "" {
		var err error
		cfg, err = config.LoadOver(configFile, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("data") {
		cfg.DataDir = dataDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("strict") {
		cfg.Strict = strict
	}
	if flags.Changed("check-assets") {
		cfg.CheckAssets = checkAssets
	}
	if flags.Changed("probe-textures") {
		cfg.ProbeTextures = probeTextures
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("mesh-dir") {
		cfg.MeshDir = meshDir
	}
	if flags.Changed("texture-dir") {
		cfg.TextureDir = textureDir
	}
	if flags.Changed("format") {
		cfg.Report.Format = format
	}
	return cfg, cfg.Validate()
}

func newLogger(level string) (golog.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zc := golog.NewDevelopmentLoggerConfig()
	zc.Level = lvl
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	l, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar().Named("robodesc"), nil
}

func loadOptions(cfg *config.Config, log golog.Logger, cache *assets.Cache) mjcf.Options {
	return mjcf.Options{
		Logger:          log,
		MaxIncludeDepth: cfg.MaxIncludeDepth,
		Strict:          cfg.Strict,
		CheckAssets:     cfg.CheckAssets,
		ProbeTextures:   cfg.ProbeTextures,
		Workers:         cfg.Workers,
		MeshDir:         cfg.MeshDir,
		TextureDir:      cfg.TextureDir,
		Cache:           cache,
	}
}

// env is the per-command state built from the layered settings.
type env struct {
	cfg *config.Config
	log golog.Logger
}

func setup(cmd *cobra.Command) (*env, error) {
	cfg, err := settings(cmd)
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log}, nil
}

func loadModel(cmd *cobra.Command, file string) (*mjcf.Result, *env, error) {
	e, err := setup(cmd)
	if err != nil {
		return nil, nil, err
	}
	res, err := mjcf.LoadFile(cmd.Context(), file, loadOptions(e.cfg, e.log, nil))
	if err != nil {
		return nil, nil, err
	}
	return res, e, nil
}

// modelFor loads arg as a stored snapshot when one exists by that id, and
// as a description file otherwise.
func modelFor(cmd *cobra.Command, arg string) (*model.Model, error) {
	e, err := setup(cmd)
	if err != nil {
		return nil, err
	}
	st := storage.New(e.cfg.DataDir)
	if st.Exists(arg) {
		doc, err := st.Document(arg)
		if err != nil {
			return nil, err
		}
		return mjcf.Unmarshal(doc, mjcf.Options{Logger: e.log, Strict: e.cfg.Strict})
	}
	res, err := mjcf.LoadFile(cmd.Context(), arg, loadOptions(e.cfg, e.log, nil))
	if err != nil {
		return nil, err
	}
	return res.Model, nil
}

func validateFiles(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	opts := loadOptions(e.cfg, e.log, assets.NewCache())

	failed := 0
	for _, file := range args {
		res, err := mjcf.LoadFile(cmd.Context(), file, opts)
		if err != nil {
			failed++
			printLoadError(file, err)
			continue
		}
		m := res.Model
		fmt.Printf("ok    %s (%d bodies, %d joints, %d geoms, %d warnings)\n",
			file, len(m.Bodies)-1, len(m.Joints), len(m.Geoms), len(res.Warnings))
		for i := range res.Warnings {
			fmt.Printf("      warning: %s\n", res.Warnings[i].Error())
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}

func printLoadError(file string, err error) {
	var verr *validate.ValidationError
	if errors.As(err, &verr) {
		fmt.Printf("FAIL  %s (%d errors)\n", file, len(verr.Issues))
		for i := range verr.Issues {
			fmt.Printf("      %s\n", verr.Issues[i].Error())
		}
		return
	}
	fmt.Printf("FAIL  %s\n      %v\n", file, err)
}

func writeOutput(data []byte) error {
	if outFile == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(outFile, data, 0644)
}

func formatFile(cmd *cobra.Command, args []string) error {
	res, _, err := loadModel(cmd, args[0])
	if err != nil {
		return err
	}
	m := res.Model
	if inline {
		if m, err = mjcf.Inline(m); err != nil {
			return err
		}
	}
	data, err := mjcf.Marshal(m)
	if err != nil {
		return err
	}
	return writeOutput(data)
}

func flattenFile(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	dir, name := filepath.Split(args[0])
	if dir == "" {
		dir = "."
	}
	root, files, err := include.Flatten(os.DirFS(dir), name, include.Options{MaxDepth: e.cfg.MaxIncludeDepth, Logger: e.log})
	if err != nil {
		return err
	}
	e.log.Debugw("flattened", "files", files)
	return writeOutput(xmltree.Marshal(root))
}

func statsFile(cmd *cobra.Command, args []string) error {
	res, e, err := loadModel(cmd, args[0])
	if err != nil {
		return err
	}

	var out report.Writer
	switch e.cfg.Report.Format {
	case "json":
		out = report.NewJSONFormat(os.Stdout)
	default:
		h := report.NewHumanFormat(os.Stdout, e.log)
		h.MaxLength = e.cfg.Report.MaxLength
		out = h
	}
	writers := []report.Writer{out}
	if e.cfg.Report.Dir != "" {
		lf, err := report.MakeFormat(report.Log, e.cfg.Report.Dir, e.log)
		if err != nil {
			return err
		}
		writers = append(writers, lf)
	}

	l := report.NewLogger(writers...)
	report.Summarize(l, res.Model, res.Assets)
	l.Record("load/files", len(res.Files))
	l.Record("load/warnings", len(res.Warnings))
	if err := l.Dump(0); err != nil {
		return err
	}
	if err := l.Close(); err != nil {
		return err
	}

	if plot && len(res.Model.Bodies) > 1 {
		mass := kinematics.SubtreeMass(res.Model)
		fmt.Println()
		fmt.Println(asciigraph.Plot(mass[1:],
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption("subtree mass by body index"),
		))
	}
	return nil
}

func treeFile(cmd *cobra.Command, args []string) error {
	res, _, err := loadModel(cmd, args[0])
	if err != nil {
		return err
	}
	fmt.Print(viz.RenderTree(res.Model))
	return nil
}

func jointsFile(cmd *cobra.Command, args []string) error {
	res, _, err := loadModel(cmd, args[0])
	if err != nil {
		return err
	}
	rows := storage.JointRows(res.Model)
	if len(rows) == 0 {
		fmt.Println("no joints")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tBODY\tTYPE\tQPOS\tLIMITED\tRANGE\tDAMPING\tARMATURE")
	var widths []float64
	for _, r := range rows {
		rng := "-"
		if r.Range != nil {
			rng = fmt.Sprintf("[%.4g, %.4g]", r.Range[0], r.Range[1])
			widths = append(widths, r.Range[1]-r.Range[0])
		}
		qpos := fmt.Sprintf("%d", r.QposOffset)
		if r.QposDim > 1 {
			qpos = fmt.Sprintf("%d-%d", r.QposOffset, r.QposOffset+r.QposDim-1)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\t%.4g\t%.4g\n",
			r.Name, r.Body, r.Type, qpos, r.Limited, rng, r.Damping, r.Armature)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if plot && len(widths) > 0 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(widths,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption("joint range width"),
		))
	}
	return nil
}

func snapshotFile(cmd *cobra.Command, args []string) error {
	res, e, err := loadModel(cmd, args[0])
	if err != nil {
		return err
	}
	doc, err := mjcf.Marshal(res.Model)
	if err != nil {
		return err
	}
	st := storage.New(e.cfg.DataDir)
	id, err := st.Save(res.Model, doc, storage.Metadata{
		Source:   args[0],
		Files:    res.Files,
		Warnings: len(res.Warnings),
	})
	if err != nil {
		return err
	}
	e.log.Infow("snapshot saved", "id", id, "dir", e.cfg.DataDir)
	fmt.Println(id)
	return nil
}

func listSnapshots(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	snaps, err := storage.New(e.cfg.DataDir).List()
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		fmt.Println("no snapshots found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tTIME\tSOURCE\tBODIES\tJOINTS\tNQ\tMASS")
	for _, s := range snaps {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%.4g\n",
			s.ID,
			s.Model,
			s.Timestamp.Format("2006-01-02 15:04:05"),
			strings.Join(append([]string{s.Source}, extraFiles(s.Files)...), ","),
			s.Bodies,
			s.Joints,
			s.NQ,
			s.Metrics["total_mass"],
		)
	}
	return w.Flush()
}

// extraFiles returns the included files after the root document.
func extraFiles(files []string) []string {
	if len(files) <= 1 {
		return nil
	}
	return files[1:]
}

func exportCSV(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	st := storage.New(e.cfg.DataDir)
	if st.Exists(args[0]) {
		rows, err := st.LoadJoints(args[0])
		if err != nil {
			return err
		}
		e.log.Debugw("exporting stored joints", "id", args[0], "joints", len(rows))
		return storage.WriteJointRows(os.Stdout, rows)
	}
	m, err := modelFor(cmd, args[0])
	if err != nil {
		return err
	}
	return storage.WriteJointsCSV(os.Stdout, m)
}
