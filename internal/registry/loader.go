package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"inferbridge/internal/common/fsutil"
	"inferbridge/pkg/types"
)

// LoadDir scans a directory for *.gguf files and builds a catalog from filenames.
// ID is the full filename (including extension); Path is the absolute file path.
func LoadDir(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		m := types.Model{ID: name, Name: strings.TrimSuffix(name, filepath.Ext(name)), Path: filepath.Join(abs, name)}
		m.Quant = quantFromName(m.Name)
		if info, err := e.Info(); err == nil {
			m.SizeBytes = info.Size()
		}
		models = append(models, m)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

// Find returns the model whose ID or Name equals ref, or whose path is ref.
func Find(models []types.Model, ref string) (types.Model, bool) {
	for _, m := range models {
		if m.ID == ref || m.Name == ref || m.Path == ref {
			return m, true
		}
	}
	return types.Model{}, false
}

// quantFromName picks the quantization suffix from names like
// "llama-3.2-1b-instruct-q4_k_m" or "whisper.Q8_0".
func quantFromName(name string) string {
	i := strings.LastIndexAny(name, "-.")
	if i < 0 || i == len(name)-1 {
		return ""
	}
	q := strings.ToUpper(name[i+1:])
	switch q {
	case "F16", "F32", "BF16":
		return q
	}
	body, ok := strings.CutPrefix(q, "IQ")
	if !ok {
		if body, ok = strings.CutPrefix(q, "Q"); !ok {
			return ""
		}
	}
	if body != "" && body[0] >= '1' && body[0] <= '8' {
		return q
	}
	return ""
}
