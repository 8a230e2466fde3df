package models

// Audio feature dimensions carried by every catalog track, in the fixed
// order used by the feature index. Tempo is on a BPM scale while the other
// dimensions are [0,1]-bounded; the engine normalizes all of them at build
// time before any distance is computed.
const (
	FeatureDanceability = iota
	FeatureEnergy
	FeatureValence
	FeatureAcousticness
	FeatureInstrumentalness
	FeatureTempo

	NumFeatures
)

var FeatureNames = [NumFeatures]string{
	"danceability",
	"energy",
	"valence",
	"acousticness",
	"instrumentalness",
	"tempo",
}

// FeatureVector is a fixed-length audio feature vector. A dimension may be
// missing in the source dataset; Present tracks that explicitly instead of
// conflating "absent" with zero.
type FeatureVector struct {
	Values  [NumFeatures]float64 `json:"values"`
	Present [NumFeatures]bool    `json:"present"`
}

// Set assigns a dimension and marks it present.
func (f *FeatureVector) Set(dim int, value float64) {
	f.Values[dim] = value
	f.Present[dim] = true
}

type Track struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Artist     string        `json:"artist"`
	Genre      string        `json:"genre"`
	Year       int           `json:"year"`
	Popularity int           `json:"popularity"`
	Features   FeatureVector `json:"features"`
}

// SeedInfo identifies one seed track supplied by a caller. ID is tried
// first; Name and Artist are only used as a fallback lookup when the ID is
// not in the catalog.
type SeedInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Artist string `json:"artist,omitempty"`
}
