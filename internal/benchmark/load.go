package benchmark

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// benchmarkFile is the YAML document shape for an external benchmark set.
type benchmarkFile struct {
	Benchmarks []Benchmark `yaml:"benchmarks"`
}

// Load reads a benchmark set from a YAML file and validates it. Operators
// tune tier thresholds without rebuilding the binary.
func Load(path string) ([]Benchmark, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "benchmark: read %s", path)
	}

	var f benchmarkFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "benchmark: parse %s", path)
	}

	if err := Validate(f.Benchmarks); err != nil {
		return nil, err
	}
	return f.Benchmarks, nil
}

// LoadOrDefaults loads the set at path when path is non-empty, otherwise
// returns the stock set.
func LoadOrDefaults(path string) ([]Benchmark, error) {
	if path == "" {
		return Defaults(), nil
	}
	return Load(path)
}
