package corpus

import (
	"bytes"

	"github.com/segmentio/ksuid"

	"github.com/blockberries/wiremsg/pkg/schema"
	"github.com/blockberries/wiremsg/pkg/wiremsg"
)

// Result is the outcome of checking one sample.
type Result struct {
	ID   ksuid.KSUID
	Type string
	// Err is the lookup or decode failure, nil when the sample decoded.
	Err error
	// Canonical reports whether re-encoding the decoded message reproduced
	// the stored bytes exactly.
	Canonical bool
}

// Report summarizes a verification run.
type Report struct {
	Results []Result
}

// Failed returns the results that did not decode.
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// OK reports whether every sample decoded.
func (r *Report) OK() bool {
	return len(r.Failed()) == 0
}

// Verify decodes every stored sample against cat with opts. A sample whose
// type is missing from cat, or whose bytes fail to decode, is a failure.
func (s *Store) Verify(cat *schema.Catalog, opts wiremsg.Options) (*Report, error) {
	samples, err := s.List("")
	if err != nil {
		return nil, err
	}
	report := &Report{Results: make([]Result, 0, len(samples))}
	for _, sample := range samples {
		res := CheckSample(cat, sample, opts)
		if res.Err != nil {
			s.log.Warn().Str("id", sample.ID.String()).Str("type", sample.Type).Err(res.Err).Msg("sample no longer decodes")
		}
		report.Results = append(report.Results, res)
	}
	return report, nil
}

// CheckSample decodes one sample and re-encodes it.
func CheckSample(cat *schema.Catalog, sample Sample, opts wiremsg.Options) Result {
	res := Result{ID: sample.ID, Type: sample.Type}
	desc, err := cat.Lookup(sample.Type)
	if err != nil {
		res.Err = err
		return res
	}
	m, err := wiremsg.UnmarshalWithOptions(sample.Data, desc, opts)
	if err != nil {
		res.Err = err
		return res
	}
	again, err := wiremsg.MarshalWithOptions(m, opts)
	if err != nil {
		res.Err = err
		return res
	}
	res.Canonical = bytes.Equal(again, sample.Data)
	return res
}
