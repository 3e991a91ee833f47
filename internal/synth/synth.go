// Package synth turns a project directory into a cloud assembly: the
// template, the handler archive and a manifest indexing both.
package synth

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/BDNK1/schedstack/internal/asset"
	"github.com/BDNK1/schedstack/internal/assertions"
	"github.com/BDNK1/schedstack/internal/config"
	"github.com/BDNK1/schedstack/internal/definition"
	"github.com/BDNK1/schedstack/internal/template"
)

// Options select the project and override its output settings.
type Options struct {
	ProjectDir string
	Overrides  map[string]string
	OutDir     string // overrides output.dir; relative paths are resolved against ProjectDir
	Format     string // overrides output.format
	Logger     *slog.Logger
}

// Assembly is a synthesized stack held in memory.
type Assembly struct {
	Config     *config.StackConfig
	Definition *definition.Definition
	Template   *template.Template
	Asset      *asset.Package
	Manifest   *Manifest
	Results    []assertions.Result
	OutDir     string

	TemplateBytes []byte
	ManifestBytes []byte
}

// Build runs every synthesis step without touching the output directory.
// A failed check returns the assembly together with an *assertions.Failure.
func Build(opts Options) (*Assembly, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	projectDir, err := filepath.Abs(opts.ProjectDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project directory: %w", err)
	}

	cfg, err := config.Load(projectDir, opts.Overrides)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.Format != "" {
		if opts.Format != template.FormatJSON && opts.Format != template.FormatYAML {
			return nil, fmt.Errorf("unsupported template format %q", opts.Format)
		}
		cfg.Output.Format = opts.Format
	}
	logger.Debug("loaded stack config", "stack", cfg.Name, "functions", len(cfg.Functions))

	assetDir, err := cfg.AssetDir(projectDir)
	if err != nil {
		return nil, err
	}

	outDir, err := OutputDir(projectDir, cfg, opts.OutDir)
	if err != nil {
		return nil, err
	}

	def, err := definition.FromConfig(cfg, assetDir)
	if err != nil {
		return nil, err
	}
	logger.Debug("built workflow", "workflow", def.Workflow.Name, "shape", def.Workflow.Shape())

	// The assembly may live inside the handler directory; earlier output
	// must not feed back into the archive
	pkg, err := asset.Pack(assetDir, outDir, stagingPattern(outDir))
	if err != nil {
		return nil, fmt.Errorf("failed to package handlers: %w", err)
	}
	logger.Debug("packaged handlers", "hash", pkg.Hash, "files", len(pkg.Files))

	bucket := cfg.Assets.Bucket
	tmpl, err := template.Synthesize(def, template.Asset{
		Hash:   pkg.Hash,
		Bucket: bucket,
		Key:    pkg.Key(cfg.Assets.Prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize template: %w", err)
	}

	a := &Assembly{
		Config:     cfg,
		Definition: def,
		Template:   tmpl,
		Asset:      pkg,
		OutDir:     outDir,
	}

	if a.TemplateBytes, err = tmpl.Render(cfg.Output.Format); err != nil {
		return nil, err
	}

	if bucket == "" {
		bucket = template.DefaultAssetBucket
	}
	a.Manifest = &Manifest{
		Version:  ManifestVersion,
		Stack:    cfg.Name,
		Template: TemplateFileName(cfg.Name, cfg.Output.Format),
		Format:   cfg.Output.Format,
		Asset: ManifestAsset{
			File:   pkg.FileName(),
			Hash:   pkg.Hash,
			Bucket: bucket,
			Key:    pkg.Key(cfg.Assets.Prefix),
			Files:  pkg.Files,
		},
		Schedule: ManifestSchedule{
			Rule:       def.Rule.Name,
			Expression: def.Rule.ScheduleExpression(),
			Enabled:    def.Rule.Enabled,
		},
		Workflow: ManifestWorkflow{
			Name:           def.Workflow.Name,
			States:         stepNames(def.Workflow),
			TimeoutSeconds: int(def.Workflow.Timeout.Seconds()),
		},
	}
	if a.ManifestBytes, err = a.Manifest.Bytes(); err != nil {
		return nil, err
	}

	env, err := assertions.Collect(def, tmpl)
	if err != nil {
		return nil, fmt.Errorf("failed to collect template facts: %w", err)
	}

	checks := append([]assertions.Check{}, assertions.Builtin...)
	for _, c := range cfg.Checks {
		checks = append(checks, assertions.Check{Name: c.Name, Expr: c.Expr})
	}

	a.Results, err = assertions.Run(env, checks)
	for _, r := range a.Results {
		logger.Debug("check evaluated", "check", r.Check.Name, "passed", r.Passed)
	}
	if err != nil {
		return a, err
	}

	return a, nil
}

// Run builds the assembly and writes it to the output directory. Nothing is
// written when any step or check fails.
func Run(opts Options) (*Assembly, string, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a, err := Build(opts)
	if err != nil {
		return nil, "", err
	}

	if err := Write(a, a.OutDir); err != nil {
		return nil, "", err
	}

	logger.Info("synthesized stack",
		"stack", a.Config.Name,
		"out", a.OutDir,
		"template", a.Manifest.Template,
		"asset", a.Asset.Hash)

	return a, a.OutDir, nil
}

// Write stores the assembly files in outDir through a staging directory.
func Write(a *Assembly, outDir string) (err error) {
	st, err := newStaging(outDir)
	if err != nil {
		return err
	}
	defer func() {
		if cleanupErr := st.Cleanup(); cleanupErr != nil && err == nil {
			err = cleanupErr
		}
	}()

	files := []struct {
		name string
		data []byte
	}{
		{a.Manifest.Template, a.TemplateBytes},
		{a.Asset.FileName(), a.Asset.Archive},
		{ManifestFile, a.ManifestBytes},
	}
	for _, f := range files {
		if err := st.WriteFile(f.name, f.data); err != nil {
			return err
		}
	}

	return st.Commit()
}

// OutputDir resolves the assembly directory: the explicit override if set,
// otherwise output.dir, relative to the project directory.
func OutputDir(projectDir string, cfg *config.StackConfig, override string) (string, error) {
	dir := cfg.Output.Dir
	if override != "" {
		dir = override
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(projectDir, dir)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve output directory: %w", err)
	}

	absProject, err := filepath.Abs(projectDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve project directory: %w", err)
	}
	if abs == absProject {
		return "", fmt.Errorf("output directory cannot be the project directory")
	}

	return abs, nil
}

// TemplateFileName is the assembly file name of the stack template.
func TemplateFileName(stack, format string) string {
	return fmt.Sprintf("%s.template.%s", stack, format)
}

func stepNames(wf definition.Workflow) []string {
	names := make([]string, len(wf.Steps))
	for i, s := range wf.Steps {
		names[i] = s.Name
	}
	return names
}
