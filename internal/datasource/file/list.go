package file

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ReadList reads an input list file: one path per line, blank lines and
// lines starting with '#' skipped. Relative paths are resolved against the
// directory of the list file. Order is preserved.
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("input list: %w", err)
	}
	defer f.Close()

	base := filepath.Dir(path)
	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("input list %s: %w", path, err)
	}
	return out, nil
}
