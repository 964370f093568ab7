package analysis

import (
	"encoding/json"
	"math"
)

// Series is an index-aligned sequence of metric values for one work. NaN
// marks positions where a metric is undefined, such as rolling-mean
// boundaries; those positions marshal to JSON null.
type Series []float64

// MarshalJSON encodes undefined positions as null.
func (s Series) MarshalJSON() ([]byte, error) {
	out := make([]*float64, len(s))
	for i := range s {
		if !math.IsNaN(s[i]) {
			v := s[i]
			out[i] = &v
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes null positions back to NaN.
func (s *Series) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Series, len(raw))
	for i, v := range raw {
		if v == nil {
			out[i] = math.NaN()
		} else {
			out[i] = *v
		}
	}
	*s = out
	return nil
}

// Last returns the final value of the series, or false when the series is
// empty or ends undefined.
func (s Series) Last() (float64, bool) {
	if len(s) == 0 {
		return 0, false
	}
	v := s[len(s)-1]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
