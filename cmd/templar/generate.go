package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/natefinch/atomic"

	"github.com/amenyxia/templar/pkg/luahost"
	"github.com/amenyxia/templar/pkg/store"
	"github.com/amenyxia/templar/pkg/template"
)

// templateSyntax returns the syntax a template file should be lexed with:
// the configured default, overridden by an adjacent <name>.syntax.json
// when one exists.
func templateSyntax(path string, base template.Syntax) (template.Syntax, error) {
	syn := base
	sidecar := strings.TrimSuffix(path, filepath.Ext(path)) + ".syntax.json"
	raw, err := os.ReadFile(sidecar)
	if err != nil {
		if os.IsNotExist(err) {
			return syn, nil
		}
		return syn, fmt.Errorf("failed to read %s: %w", sidecar, err)
	}
	if err = json.Unmarshal(raw, &syn); err != nil {
		return syn, fmt.Errorf("failed to parse %s: %w", sidecar, err)
	}
	if err = syn.Validate(); err != nil {
		return syn, fmt.Errorf("invalid syntax in %s: %w", sidecar, err)
	}
	return syn, nil
}

// outputName maps a template filename to its output filename, dropping a
// .tmpl extension when present.
func outputName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, ".tmpl")
}

// compileAll discovers the configured templates, compiles each (reusing
// the store's program cache), and returns the renderable jobs. A template
// that fails to compile is reported and skipped; it never aborts its
// siblings.
func compileAll(ctx context.Context, config *Config, logger *slog.Logger, st *store.Store, data map[string]template.Value) ([]template.Job, []string, int, int, error) {
	paths, err := filepath.Glob(config.TemplateGlob)
	if err != nil {
		return nil, nil, 0, 0, fmt.Errorf("bad template glob %q: %w", config.TemplateGlob, err)
	}
	if len(paths) == 0 {
		logger.Warn("No template files found matching pattern", "pattern", config.TemplateGlob)
	}

	var (
		jobs     []template.Job
		outNames []string
		failed   int
	)

	for _, path := range paths {
		source, err := os.ReadFile(path)
		if err != nil {
			logger.Error("Failed to read template", "path", path, "error", err)
			failed++
			continue
		}

		syn, err := templateSyntax(path, config.Syntax)
		if err != nil {
			logger.Error("Failed to load template syntax", "path", path, "error", err)
			failed++
			continue
		}

		t, err := st.Put(ctx, filepath.Base(path), string(source), syn)
		if err != nil {
			return nil, nil, 0, 0, fmt.Errorf("failed to store template %s: %w", path, err)
		}

		prog, err := st.LoadProgram(ctx, t.ID, t.Hash)
		if err != nil {
			return nil, nil, 0, 0, fmt.Errorf("failed to load cached program for %s: %w", path, err)
		}
		if prog == nil {
			prog, err = template.CompileSource(string(source), syn)
			if err != nil {
				logger.Error("Failed to compile template", "path", path, "error", err)
				failed++
				continue
			}
			if err = st.SaveProgram(ctx, t.ID, t.Hash, prog); err != nil {
				return nil, nil, 0, 0, fmt.Errorf("failed to cache program for %s: %w", path, err)
			}
			logger.Debug("Compiled template", "path", path, "instructions", prog.Len())
		} else {
			logger.Debug("Loaded cached program", "path", path, "instructions", prog.Len())
		}

		jobs = append(jobs, template.Job{Template: prog, Data: data})
		outNames = append(outNames, outputName(path))
	}

	return jobs, outNames, failed, len(paths), nil
}

// runGenerate renders every configured template against the data file and
// writes the outputs atomically. It returns an error when any template
// failed, after all templates have been attempted.
func runGenerate(ctx context.Context, config *Config, logger *slog.Logger, st *store.Store) error {
	data, err := loadData(config.DataFile)
	if err != nil {
		return err
	}

	jobs, outNames, failed, total, err := compileAll(ctx, config, logger, st, data)
	if err != nil {
		return err
	}

	if err = os.MkdirAll(config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	pool := template.NewPool(luahost.New(), config.Workers)
	pool.SetLogger(logger)
	results := pool.Render(ctx, jobs)

	for i, res := range results {
		outPath := filepath.Join(config.OutputDir, outNames[i])
		switch res.State {
		case template.JobCompleted:
			if err = atomic.WriteFile(outPath, strings.NewReader(res.Output)); err != nil {
				logger.Error("Failed to write output", "path", outPath, "error", err)
				failed++
				continue
			}
			logger.Info("Rendered template", "output", outPath, "bytes", len(res.Output))
		case template.JobCancelled:
			logger.Warn("Render cancelled", "output", outPath)
			failed++
		default:
			logger.Error("Render failed", "output", outPath, "error", res.Err)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d templates failed", failed, total)
	}
	return nil
}

// runCheck compiles every configured template and reports diagnostics
// without rendering anything.
func runCheck(config *Config, logger *slog.Logger) error {
	paths, err := filepath.Glob(config.TemplateGlob)
	if err != nil {
		return fmt.Errorf("bad template glob %q: %w", config.TemplateGlob, err)
	}
	if len(paths) == 0 {
		logger.Warn("No template files found matching pattern", "pattern", config.TemplateGlob)
		return nil
	}

	failed := 0
	for _, path := range paths {
		source, err := os.ReadFile(path)
		if err != nil {
			logger.Error("Failed to read template", "path", path, "error", err)
			failed++
			continue
		}
		syn, err := templateSyntax(path, config.Syntax)
		if err != nil {
			logger.Error("Failed to load template syntax", "path", path, "error", err)
			failed++
			continue
		}
		if _, err = template.CompileSource(string(source), syn); err != nil {
			logger.Error("Template does not compile", "path", path, "error", err)
			failed++
			continue
		}
		logger.Info("Template OK", "path", path)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d templates failed", failed, len(paths))
	}
	return nil
}
