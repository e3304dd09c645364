package vectors

import "github.com/remiblancher/primlab/kat"

// LoadEmbedded loads the vectors compiled into the binary.
func LoadEmbedded() ([]Vector, error) {
	return LoadFS(kat.FS, ".")
}
