package registry

import (
	"bufio"
	"bytes"
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"bobbin/internal/logging"
	"bobbin/internal/services"
)

const frontMatterDelimiter = "---"

// DirectoryRegistry scans a checkout of published transcripts. Each markdown
// file may carry YAML front matter with a media key.
type DirectoryRegistry struct {
	root   string
	logger *slog.Logger
}

// NewDirectoryRegistry scans root recursively for *.md files.
func NewDirectoryRegistry(root string, logger *slog.Logger) *DirectoryRegistry {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &DirectoryRegistry{root: root, logger: logger}
}

type frontMatter struct {
	Media string `yaml:"media"`
}

// ListExistingMedia walks the directory and collects front matter media values.
func (r *DirectoryRegistry) ListExistingMedia(ctx context.Context) (map[string]struct{}, error) {
	info, err := os.Stat(r.root)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "registry", "stat directory", r.root, err)
	}
	if !info.IsDir() {
		return nil, services.Wrap(services.ErrConfiguration, "registry", "stat directory", r.root+" is not a directory", nil)
	}

	set := make(map[string]struct{})
	var skipped int
	walkErr := filepath.WalkDir(r.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != r.root {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}
		media, err := readFrontMatterMedia(path)
		if err != nil {
			skipped++
			r.logger.Debug("front matter unreadable", logging.String("path", path), logging.Error(err))
			return nil
		}
		if media != "" {
			set[media] = struct{}{}
		}
		return nil
	})
	if walkErr != nil {
		return nil, services.Wrap(services.ErrTransient, "registry", "walk directory", r.root, walkErr)
	}
	if skipped > 0 {
		logging.WarnWithContext(r.logger, "some transcripts had unreadable front matter", "registry_front_matter_skipped",
			logging.Int("skipped", skipped),
			logging.String("dir", r.root),
			logging.String(logging.FieldImpact, "media in those files will not be treated as transcribed"),
			logging.String(logging.FieldErrorHint, "fix the YAML header of the affected markdown files"),
		)
	}
	return set, nil
}

func readFrontMatterMedia(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	block, ok := extractFrontMatter(data)
	if !ok {
		return "", nil
	}
	var fm frontMatter
	if err := yaml.Unmarshal(block, &fm); err != nil {
		return "", err
	}
	return strings.TrimSpace(fm.Media), nil
}

// extractFrontMatter returns the YAML between the leading pair of --- lines.
func extractFrontMatter(data []byte) ([]byte, bool) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != frontMatterDelimiter {
		return nil, false
	}
	var block bytes.Buffer
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == frontMatterDelimiter {
			return block.Bytes(), true
		}
		block.WriteString(line)
		block.WriteByte('\n')
	}
	return nil, false
}
