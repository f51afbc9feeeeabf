package models

import "math"

// EmbeddingVersion names the dimension order of [Embedding]. Any change to the order bumps it.
const EmbeddingVersion = "v1"

// EmbeddingDims is the fixed length of an [Embedding].
const EmbeddingDims = 12

// EmbeddingDimensions lists the source attribute of each position, in order.
var EmbeddingDimensions = [EmbeddingDims]string{
	"danceability",
	"energy",
	"key",
	"loudness",
	"mode",
	"speechiness",
	"acousticness",
	"instrumentalness",
	"liveness",
	"valence",
	"tempo",
	"time_signature",
}

// AudioFeatures is the upstream audio analysis of one track.
type AudioFeatures struct {
	ID               string  `json:"id"`
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Key              int     `json:"key"`
	Loudness         float64 `json:"loudness"`
	Mode             int     `json:"mode"`
	Speechiness      float64 `json:"speechiness"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
	Liveness         float64 `json:"liveness"`
	Valence          float64 `json:"valence"`
	Tempo            float64 `json:"tempo"`
	TimeSignature    int     `json:"time_signature"`
	DurationMS       int     `json:"duration_ms"`
}

// Empty reports whether upstream returned a placeholder with no analysis in it.
func (f AudioFeatures) Empty() bool {
	return f.Danceability == 0 &&
		f.Energy == 0 &&
		f.Valence == 0 &&
		f.Tempo == 0 &&
		f.Instrumentalness == 0 &&
		f.Acousticness == 0 &&
		f.Speechiness == 0 &&
		f.Liveness == 0
}

// Embedding is a 12-dimension vector in [0,1], ordered as [EmbeddingDimensions].
type Embedding [EmbeddingDims]float32

// Slice returns the embedding as a slice for encoding.
func (e *Embedding) Slice() []float32 {
	if e == nil {
		return nil
	}
	out := make([]float32, EmbeddingDims)
	copy(out, e[:])
	return out
}

// NewEmbedding maps audio features onto the v1 dimension order.
//
// Returns nil for nil or empty features so absence never turns into a zero vector.
// Key -1 (no key detected) maps to 0.
func NewEmbedding(f *AudioFeatures) *Embedding {
	if f == nil || f.Empty() {
		return nil
	}

	key := 0.0
	if f.Key >= 0 {
		key = float64(f.Key) / 11
	}

	raw := [EmbeddingDims]float64{
		f.Danceability,
		f.Energy,
		key,
		(f.Loudness + 60) / 60,
		float64(f.Mode),
		f.Speechiness,
		f.Acousticness,
		f.Instrumentalness,
		f.Liveness,
		f.Valence,
		f.Tempo / 250,
		float64(f.TimeSignature) / 7,
	}

	var e Embedding
	for i, v := range raw {
		e[i] = float32(unit(v))
	}
	return &e
}

func unit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return min(max(v, 0), 1)
}
