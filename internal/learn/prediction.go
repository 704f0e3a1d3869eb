package learn

import "fmt"

// Prediction holds the outcome of scoring a model on held-out rows. For
// classification, Response carries predicted class indices and Prob the
// positive-class probability on binary tasks; for regression, Response
// carries the numeric response and Prob is nil.
type Prediction struct {
	Truth    []float64 `json:"truth"`
	Response []float64 `json:"response"`
	Prob     []float64 `json:"prob,omitempty"`
}

// Len returns the number of predicted rows.
func (p *Prediction) Len() int { return len(p.Truth) }

// Merge appends another prediction's rows, pooling fold predictions into one
// object. Both must agree on whether probabilities are present.
func (p *Prediction) Merge(other *Prediction) error {
	if (p.Prob == nil) != (other.Prob == nil) && p.Len() > 0 {
		return fmt.Errorf("cannot merge predictions with and without probabilities")
	}
	p.Truth = append(p.Truth, other.Truth...)
	p.Response = append(p.Response, other.Response...)
	if other.Prob != nil {
		p.Prob = append(p.Prob, other.Prob...)
	}
	return nil
}

// WithThreshold returns a copy whose binary responses are re-derived from the
// retained probabilities under the given decision threshold. This is the
// primitive behind post-hoc threshold tuning: no re-training involved.
func (p *Prediction) WithThreshold(threshold float64) (*Prediction, error) {
	if p.Prob == nil {
		return nil, fmt.Errorf("prediction carries no probabilities, cannot re-threshold")
	}
	out := &Prediction{
		Truth:    p.Truth,
		Prob:     p.Prob,
		Response: make([]float64, len(p.Prob)),
	}
	for i, prob := range p.Prob {
		if prob >= threshold {
			out.Response[i] = 1
		}
	}
	return out, nil
}
