package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"rehearse/internal/config"
	"rehearse/internal/runner"
)

// Loader loads test cases from scenario files and directories.
type Loader struct {
	debug  bool
	logger runner.TestLogger
}

// NewLoader creates a loader. A nil logger suppresses progress output.
func NewLoader(debug bool, logger runner.TestLogger) *Loader {
	if logger == nil {
		logger = runner.NewSilentLogger(false, debug)
	}
	return &Loader{debug: debug, logger: logger}
}

// Load loads every case found in paths. Directories are walked for .yaml and
// .yml files. All problems are collected; the returned error is a
// *config.ConfigurationErrorCollection when any file is invalid.
func (l *Loader) Load(paths ...string) ([]runner.TestCase, error) {
	errs := config.NewConfigurationErrorCollection()
	var cases []runner.TestCase

	for _, path := range paths {
		l.logger.Debug("📁 Loading test scenarios from: %s\n", path)

		info, err := os.Stat(path)
		if err != nil {
			errs.Add(config.NewConfigurationError(path, filepath.Base(path), "scenario", "file", "io", fmt.Sprintf("scenario path does not exist: %v", err)))
			continue
		}

		if !info.IsDir() {
			cases = append(cases, l.loadFile(path, errs)...)
			continue
		}

		walkErr := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !isYAMLFile(p) {
				return nil
			}
			cases = append(cases, l.loadFile(p, errs)...)
			return nil
		})
		if walkErr != nil {
			errs.Add(config.NewConfigurationError(path, filepath.Base(path), "scenario", "file", "io", fmt.Sprintf("failed to walk directory: %v", walkErr)))
		}
	}

	checkUniqueNames(cases, errs)

	if l.debug {
		l.logger.Debug("📋 Loaded %d test cases\n", len(cases))
		for _, c := range cases {
			l.logger.Debug("  • %s (%s) - %d actions\n", c.Name, c.Source, len(c.Actions))
		}
	}

	if errs.HasErrors() {
		return cases, errs
	}
	return cases, nil
}

func (l *Loader) loadFile(path string, errs *config.ConfigurationErrorCollection) []runner.TestCase {
	l.logger.Debug("📄 Loading scenario file: %s\n", path)

	data, err := os.ReadFile(path)
	if err != nil {
		errs.Add(config.NewConfigurationError(path, filepath.Base(path), "scenario", "file", "io", fmt.Sprintf("failed to read file: %v", err)))
		return nil
	}
	return parse(data, path, errs)
}

// Parse reads the test cases of one scenario file held in memory.
func Parse(data []byte, path string) ([]runner.TestCase, error) {
	errs := config.NewConfigurationErrorCollection()
	cases := parse(data, path, errs)
	checkUniqueNames(cases, errs)
	if errs.HasErrors() {
		return cases, errs
	}
	return cases, nil
}

func parse(data []byte, path string, errs *config.ConfigurationErrorCollection) []runner.TestCase {
	b := &builder{path: path, errs: errs}
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var cases []runner.TestCase
	for {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			errs.Add(config.NewConfigurationErrorWithDetails(path, baseName(path), "scenario", "file", "parse",
				"failed to parse YAML", err.Error(), []string{"check indentation and that every action is a single-key map"}))
			break
		}
		if len(node.Content) == 0 || node.Content[0].Tag == "!!null" {
			// empty document, e.g. a trailing "---"
			continue
		}

		var doc document
		if err := decode(node.Content[0], &doc); err != nil {
			b.errorf(node.Content[0].Line, "scenario", "%v", err)
			continue
		}
		if tc, ok := b.testCase(&doc); ok {
			cases = append(cases, tc)
		}
	}
	return cases
}

func (b *builder) testCase(doc *document) (runner.TestCase, bool) {
	before := b.errs.Count()

	if err := config.ValidateRequired("name", doc.Name, "scenario"); err != nil {
		b.errorf(0, "scenario", "%v", err)
	}
	if len(doc.Actions) == 0 {
		b.errorf(0, "scenario", "scenario '%s' must have at least one action", doc.Name)
	}

	vars, err := variables(&doc.Variables)
	if err != nil {
		b.errorf(doc.Variables.Line, "variables", "%v", err)
	}

	tc := runner.TestCase{
		Name:        doc.Name,
		Description: doc.Description,
		Tags:        doc.Tags,
		Variables:   vars,
		Actions:     b.actions(doc.Actions),
		Finally:     b.actions(doc.Finally),
		Timeout:     time.Duration(doc.Timeout),
		Skip:        doc.Skip,
		Source:      b.path,
	}
	return tc, b.errs.Count() == before
}

func checkUniqueNames(cases []runner.TestCase, errs *config.ConfigurationErrorCollection) {
	seen := make(map[string]string, len(cases))
	for _, c := range cases {
		if first, ok := seen[c.Name]; ok {
			errs.Add(config.NewConfigurationErrorWithDetails(c.Source, baseName(c.Source), "scenario", "scenario", "validation",
				fmt.Sprintf("duplicate scenario name '%s'", c.Name), "first defined in "+first, nil))
			continue
		}
		seen[c.Name] = c.Source
	}
}

// Filter returns the cases selected by the scenario name and tags of cfg.
// A case matches the tag filter when it carries any of the tags.
func Filter(cases []runner.TestCase, cfg runner.Configuration) []runner.TestCase {
	var filtered []runner.TestCase
	for _, c := range cases {
		if cfg.Scenario != "" && c.Name != cfg.Scenario {
			continue
		}
		if len(cfg.Tags) > 0 && !hasAnyTag(c, cfg.Tags) {
			continue
		}
		filtered = append(filtered, c)
	}
	return filtered
}

func hasAnyTag(c runner.TestCase, tags []string) bool {
	for _, t := range tags {
		if c.HasTag(t) {
			return true
		}
	}
	return false
}

// Names returns the case names.
func Names(cases []runner.TestCase) []string {
	names := make([]string, 0, len(cases))
	for _, c := range cases {
		names = append(names, c.Name)
	}
	return names
}

// Tags returns every tag used by cases, sorted.
func Tags(cases []runner.TestCase) []string {
	set := make(map[string]bool)
	for _, c := range cases {
		for _, t := range c.Tags {
			set[t] = true
		}
	}
	tags := make([]string, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

func isYAMLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func baseName(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}
