// Package persist serializes fitted meta-models to disk and back: a full
// form retaining the thinned MCMC sample, and a light form dropping the
// sample but keeping the point estimate and covariance, so a loaded model
// serves the exact same predictions either way. It also stamps the
// metadata one-liner emitted alongside a saved fit.
package persist

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"metamodelfit/internal/growth"
	"metamodelfit/internal/metamodel"
)

// GrowthMetadata is the growth block of the persisted form: provenance of
// the simulation the meta-model was fitted on.
type GrowthMetadata struct {
	GeoDomain           string `json:"geoDomain"`
	DataSource          string `json:"dataSource"`
	DataSourceYears     string `json:"dataSourceYears"`
	NbRealizations      int    `json:"nbRealizations"`
	ClimateChangeOption string `json:"climateChangeOption"`
	GrowthModel         string `json:"growthModel"`
	Upscaling           string `json:"upscaling"`
	NbPlots             int    `json:"nbPlots"`
}

// FitMetadata is the fit block of the persisted form.
type FitMetadata struct {
	TimeStamp      string `json:"timeStamp"`
	OutputType     string `json:"outputType"`
	FitModel       string `json:"fitModel"`
	StratumGroup   string `json:"stratumGroup"`
	LeadingSpecies string `json:"leadingSpecies"`
}

// Metadata is the growth-plus-fit stamp saved with every snapshot.
type Metadata struct {
	Growth GrowthMetadata `json:"growth"`
	Fit    FitMetadata    `json:"fit"`
}

// Stamp fills the simulator-derived metadata fields from mm's collection
// and winner for outputType. Free-text fields (geo domain, data source,
// upscaling, leading species) are the caller's to set afterwards.
func Stamp(mm *metamodel.MetaModel, outputType string, now time.Time) (Metadata, error) {
	info, ok := mm.SimulationInfo()
	if !ok {
		return Metadata{}, errors.New("persist: stamp: no result sets added")
	}
	winner, ok := mm.Winner(outputType)
	if !ok {
		return Metadata{}, metamodel.ErrNotFitted
	}
	return Metadata{
		Growth: GrowthMetadata{
			NbRealizations:      info.NbRealizations,
			ClimateChangeOption: info.ClimateChangeScenario,
			GrowthModel:         info.GrowthModel,
			NbPlots:             info.NbPlots,
		},
		Fit: FitMetadata{
			TimeStamp:    now.UTC().Format(time.RFC3339),
			OutputType:   outputType,
			FitModel:     string(winner.Variant().Name()),
			StratumGroup: mm.StratumGroup(),
		},
	}, nil
}

// Parameter is one saved parameter: estimate plus the schema state needed
// to rebuild an identical parameter vector on load.
type Parameter struct {
	Name     string  `json:"name"`
	Estimate float64 `json:"estimate"`
	Start    float64 `json:"start"`
	Lower    float64 `json:"lower"`
	Upper    float64 `json:"upper"`
}

// Snapshot is the on-disk form of one fitted model. Light snapshots carry
// no thinned sample but are otherwise identical, so predictions round-trip
// bit-for-bit through either form.
type Snapshot struct {
	Version        int         `json:"version"`
	Light          bool        `json:"light"`
	Metadata       Metadata    `json:"metadata"`
	ModelForm      string      `json:"modelForm"`
	Parameters     []Parameter `json:"parameters"`
	Covariance     []float64   `json:"covariance"` // row-major, len(Parameters)^2
	LPML           float64     `json:"lpml"`
	AcceptanceRate float64     `json:"acceptanceRate"`
	ThinnedSample  [][]float64 `json:"thinnedSample,omitempty"`
}

const snapshotVersion = 1

// Capture snapshots a converged model together with its metadata stamp.
func Capture(m *metamodel.Model, meta Metadata) (*Snapshot, error) {
	params, err := m.FittedParameters()
	if err != nil {
		return nil, err
	}
	cov, err := m.ParameterCovariance()
	if err != nil {
		return nil, err
	}
	thinned, err := m.ThinnedSample()
	if err != nil {
		return nil, err
	}

	n := len(params)
	flat := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			flat[i*n+j] = cov.At(i, j)
		}
	}

	saved := make([]Parameter, n)
	for i, p := range params {
		saved[i] = Parameter{Name: p.Name, Estimate: p.Estimate, Start: p.Start, Lower: p.Lower, Upper: p.Upper}
	}

	return &Snapshot{
		Version:        snapshotVersion,
		Metadata:       meta,
		ModelForm:      string(m.Variant().Name()),
		Parameters:     saved,
		Covariance:     flat,
		LPML:           m.LPML(),
		AcceptanceRate: m.AcceptanceRate(),
		ThinnedSample:  thinned,
	}, nil
}

// ToLight returns a copy of s with the MCMC sample dropped.
func (s *Snapshot) ToLight() *Snapshot {
	light := *s
	light.Light = true
	light.ThinnedSample = nil
	light.Parameters = append([]Parameter(nil), s.Parameters...)
	light.Covariance = append([]float64(nil), s.Covariance...)
	return &light
}

// Restore rebuilds a prediction-only fitted model from the snapshot.
func (s *Snapshot) Restore() (*metamodel.Model, error) {
	n := len(s.Parameters)
	if len(s.Covariance) != n*n {
		return nil, errors.Errorf("persist: covariance has %d entries, want %d", len(s.Covariance), n*n)
	}

	params := make([]metamodel.ParameterState, n)
	for i, p := range s.Parameters {
		params[i] = metamodel.ParameterState{Name: p.Name, Estimate: p.Estimate, Start: p.Start, Lower: p.Lower, Upper: p.Upper}
	}

	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			cov.SetSym(i, j, s.Covariance[i*n+j])
		}
	}

	m, err := metamodel.Restore(growth.Form(s.ModelForm), params, cov, s.LPML, s.AcceptanceRate, s.ThinnedSample)
	if err != nil {
		return nil, errors.Wrap(err, "persist: restore")
	}
	return m, nil
}

// Summary renders the snapshot's one-line-per-fact text summary. It is
// derived from the metadata, point estimate, and covariance only, so the
// full and light forms of one fit render identical summaries.
func (s *Snapshot) Summary() string {
	out := fmt.Sprintf("stratumGroup=%s outputType=%s fitModel=%s growthModel=%s scenario=%s nbRealizations=%d nbPlots=%d lpml=%.6f acceptance=%.4f\n",
		s.Metadata.Fit.StratumGroup,
		s.Metadata.Fit.OutputType,
		s.Metadata.Fit.FitModel,
		s.Metadata.Growth.GrowthModel,
		s.Metadata.Growth.ClimateChangeOption,
		s.Metadata.Growth.NbRealizations,
		s.Metadata.Growth.NbPlots,
		s.LPML,
		s.AcceptanceRate,
	)
	n := len(s.Parameters)
	for i, p := range s.Parameters {
		out += fmt.Sprintf("  %-12s %.10g (sd %.10g)\n", p.Name, p.Estimate, sqrtAt(s.Covariance, n, i))
	}
	return out
}

func sqrtAt(flat []float64, n, i int) float64 {
	v := flat[i*n+i]
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}

// Save writes the snapshot to path as indented JSON.
func Save(path string, s *Snapshot) error {
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, "persist: encode snapshot")
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return errors.Wrapf(err, "persist: write %s", path)
	}
	return nil
}

// Load reads a snapshot previously written by Save.
func Load(path string) (*Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "persist: read %s", path)
	}
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.Wrapf(err, "persist: decode %s", path)
	}
	if s.Version != snapshotVersion {
		return nil, errors.Errorf("persist: unsupported snapshot version %d", s.Version)
	}
	return &s, nil
}
