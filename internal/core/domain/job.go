package domain

import "time"

type JobDescription struct {
	ID        string     `json:"id"`
	RawText   string     `json:"raw_text"`
	Features  FeatureSet `json:"features"`
	Embedding []float32  `json:"-"`
	CreatedAt time.Time  `json:"created_at"`
}

func (j JobDescription) Clone() JobDescription {
	out := j
	out.Features = j.Features.Clone()
	if j.Embedding != nil {
		out.Embedding = append([]float32(nil), j.Embedding...)
	}
	return out
}
