// Command geomodel builds a structural model from a YAML project, computes
// it and optionally stores the result in the configured blob store.
//
// Storage for the working model is selected by GEOMODEL_STORAGE_DRIVER and the
// output store by GEOMODEL_BLOB_DRIVER.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"sort"

	"github.com/dustin/go-humanize"

	"geomodel/internal/blob"
	"geomodel/internal/core"
	"geomodel/internal/project"
	"geomodel/pkg/domain"
)

var exitFunc = os.Exit

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

type options struct {
	projectPath string
	outputKey   string
	mesh        bool
	verbose     bool
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("geomodel", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var opts options
	fs.StringVar(&opts.projectPath, "project", "geomodel.yaml", "path to the project definition")
	fs.StringVar(&opts.outputKey, "out", "", "blob key to store the computed model under")
	fs.BoolVar(&opts.mesh, "mesh", false, "extract surface meshes")
	fs.BoolVar(&opts.verbose, "v", false, "log every operation")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", fs.Args())
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts, stdout, stderr); err != nil {
		_, _ = fmt.Fprintf(stderr, "geomodel: %v\n", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, opts options, stdout, stderr io.Writer) (err error) {
	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	f, err := project.Load(opts.projectPath)
	if err != nil {
		return err
	}

	store, err := core.OpenPersistentStore(ctx, core.NewDefaultRulesEngine())
	if err != nil {
		return fmt.Errorf("open model store: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close model store: %w", cerr)
		}
	}()

	svcOpts := []core.Option{core.WithLogger(logger)}
	if f.Name != "" {
		svcOpts = append(svcOpts, core.WithProject(f.Name))
	}
	svc := core.NewService(store, svcOpts...)
	if err := project.Apply(ctx, svc, f); err != nil {
		return err
	}

	sol, err := svc.ComputeModel(ctx, core.ComputeOptions{Mesh: opts.mesh})
	if err != nil {
		return fmt.Errorf("compute model: %w", err)
	}
	if err := writeSummary(stdout, svc.Project(ctx), sol, svc.Formations(ctx)); err != nil {
		return err
	}

	if opts.outputKey == "" {
		return nil
	}
	blobs, err := blob.Open(ctx)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	info, err := svc.SaveModel(ctx, blobs, opts.outputKey)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "saved %s (%s)\n", info.Key, humanize.Bytes(uint64(max(info.Size, 0))))
	return err
}

func writeSummary(w io.Writer, name string, sol domain.Solution, formations []domain.Formation) error {
	if name == "" {
		name = "model"
	}
	names := make(map[int]string, len(formations))
	for _, f := range formations {
		names[f.ID] = f.Name
	}
	cells := make(map[int]int)
	for _, v := range sol.Lithology {
		cells[int(math.Round(v))]++
	}
	ids := make([]int, 0, len(cells))
	for id := range cells {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	lines := []string{
		fmt.Sprintf("%s: revision %d, %s points on a %s grid", name, sol.Revision, humanize.Comma(int64(len(sol.Lithology))), sol.GridKind),
	}
	for _, id := range ids {
		label, ok := names[id]
		if !ok {
			label = fmt.Sprintf("id %d", id)
		}
		lines = append(lines, fmt.Sprintf("  %s: %s cells", label, humanize.Comma(int64(cells[id]))))
	}
	for _, m := range sol.Meshes {
		lines = append(lines, fmt.Sprintf("  surface %s: %s vertices, %s triangles", m.Formation, humanize.Comma(int64(len(m.Vertices))), humanize.Comma(int64(len(m.Simplices)))))
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
