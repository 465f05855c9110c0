package ruleset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// LoaderConfig contains configuration for the Loader.
type LoaderConfig struct {
	// MaxFileSize is the maximum rule-set file size in bytes.
	// Default: 10MB.
	MaxFileSize int64

	// AllowedExtensions lists the file extensions loaded from directories.
	// Default: .yaml, .yml, .json.
	AllowedExtensions []string

	// SkipHidden skips files and directories starting with ".".
	// Default: true.
	SkipHidden bool

	// FollowSymlinks loads files behind symbolic links.
	// Default: true.
	FollowSymlinks bool
}

// DefaultLoaderConfig returns the default loader configuration.
func DefaultLoaderConfig() *LoaderConfig {
	return &LoaderConfig{
		MaxFileSize:       10 * 1024 * 1024,
		AllowedExtensions: []string{".yaml", ".yml", ".json"},
		SkipHidden:        true,
		FollowSymlinks:    true,
	}
}

// Loader reads rule sets from the file system.
//
// A rule-set file is YAML (or JSON) in one of two shapes. The full form
// names the set and lists rules as records, or as text plus context:
//
//	name: pricing
//	rules:
//	  - id: small-lots
//	    records:
//	      - {key: IF}
//	      - {key: PSR, value: 2, dynamic: true}
//	      - ...
//	  - id: large-lots
//	    text: IF PSR >= limit THEN review()
//	    context: {PSR: 7, limit: 5}
//
// The bare form is a list of record lists; the set is named after the file.
type Loader struct {
	config *LoaderConfig
}

// NewLoader creates a loader. A nil config uses DefaultLoaderConfig.
func NewLoader(config *LoaderConfig) *Loader {
	if config == nil {
		config = DefaultLoaderConfig()
	}
	return &Loader{config: config}
}

// Load loads path, which may be a file or a directory.
func (l *Loader) Load(path string) ([]*Set, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{FilePath: path, Message: "failed to access path", Cause: err}
	}
	if info.IsDir() {
		return l.LoadDirectory(path)
	}
	set, err := l.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return []*Set{set}, nil
}

// LoadFile loads a single rule-set file.
func (l *Loader) LoadFile(path string) (*Set, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &LoadError{FilePath: path, Message: "file not found", Cause: err}
		}
		if os.IsPermission(err) {
			return nil, &LoadError{FilePath: path, Message: "permission denied", Cause: err}
		}
		return nil, &LoadError{FilePath: path, Message: "failed to access file", Cause: err}
	}

	if !info.Mode().IsRegular() {
		return nil, &LoadError{FilePath: path, Message: "not a regular file"}
	}

	if info.Size() > l.config.MaxFileSize {
		return nil, &LoadError{
			FilePath: path,
			Message:  fmt.Sprintf("file size %d bytes exceeds maximum %d bytes", info.Size(), l.config.MaxFileSize),
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{FilePath: path, Message: "failed to read file", Cause: err}
	}

	if !utf8.Valid(data) {
		return nil, &LoadError{FilePath: path, Message: "file contains invalid UTF-8 encoding"}
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	set, err := Decode(data, base)
	if err != nil {
		return nil, &LoadError{FilePath: path, Message: "invalid rule set", Cause: err}
	}
	set.Source = path
	return set, nil
}

// LoadDirectory loads every rule-set file under dir, sorted by path. When
// some files fail the successfully loaded sets are returned together with
// the joined errors.
func (l *Loader) LoadDirectory(dir string) ([]*Set, error) {
	files, err := l.collectFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, &LoadError{FilePath: dir, Message: "no rule-set files found in directory"}
	}

	var sets []*Set
	var errs []error
	for _, path := range files {
		set, err := l.LoadFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		sets = append(sets, set)
	}

	return sets, errors.Join(errs...)
}

// collectFiles returns the loadable files under dir.
func (l *Loader) collectFiles(dir string) ([]string, error) {
	var files []string
	visited := make(map[string]bool)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if l.config.SkipHidden && strings.HasPrefix(d.Name(), ".") && path != dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			if !l.config.FollowSymlinks {
				return nil
			}
			realPath, err := filepath.EvalSymlinks(path)
			if err != nil {
				return &LoadError{FilePath: path, Message: "failed to resolve symlink", Cause: err}
			}
			if visited[realPath] {
				return nil
			}
			visited[realPath] = true
			if !l.HasValidExtension(realPath) {
				return nil
			}
			files = append(files, path)
			return nil
		}

		if l.HasValidExtension(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, &LoadError{FilePath: dir, Message: "failed to walk directory", Cause: err}
	}

	sort.Strings(files)
	return files, nil
}

// HasValidExtension returns true if path has a loadable extension.
func (l *Loader) HasValidExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, valid := range l.config.AllowedExtensions {
		if ext == strings.ToLower(valid) {
			return true
		}
	}
	return false
}

type fileSet struct {
	Name  string     `yaml:"name"`
	Rules []fileRule `yaml:"rules"`
}

type fileRule struct {
	ID      string         `yaml:"id"`
	Records []Record       `yaml:"records"`
	Text    string         `yaml:"text"`
	Context map[string]any `yaml:"context"`
}

// Decode parses a rule set from YAML or JSON. name is used when the
// document does not name the set. Only a malformed document is an error; a
// rule that cannot be built is kept and marked Invalid.
func Decode(data []byte, name string) (*Set, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if len(root.Content) == 0 {
		return nil, errors.New("empty document")
	}
	doc := root.Content[0]

	var parsed fileSet
	switch doc.Kind {
	case yaml.MappingNode:
		if err := doc.Decode(&parsed); err != nil {
			return nil, err
		}
	case yaml.SequenceNode:
		var bare [][]Record
		if err := doc.Decode(&bare); err != nil {
			return nil, fmt.Errorf("line %d: expected a list of record lists: %w", doc.Line, err)
		}
		for _, records := range bare {
			parsed.Rules = append(parsed.Rules, fileRule{Records: records})
		}
	default:
		return nil, fmt.Errorf("line %d: expected a mapping or a list", doc.Line)
	}

	set := &Set{Name: parsed.Name, Rules: make([]Rule, 0, len(parsed.Rules))}
	if set.Name == "" {
		set.Name = name
	}

	for _, fr := range parsed.Rules {
		set.Rules = append(set.Rules, BuildRule(fr.ID, fr.Records, fr.Text, fr.Context))
	}

	return set, nil
}
