package model

// Model scores rows of positional feature vectors. Implementations must be
// safe for concurrent use once loaded.
type Model interface {
	Predict(X [][]float64) ([]float64, error)
	Info() Info
}

// Info identifies a loaded model artifact.
type Info struct {
	Name     string   `json:"name" yaml:"name"`
	Version  string   `json:"version" yaml:"version"`
	Kind     string   `json:"kind" yaml:"kind"`
	Source   string   `json:"source" yaml:"source"`
	Features []string `json:"features" yaml:"features"`
}
