package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const prefix = "transcribrr_"

// Sample is one labelled value of a gathered metric.
// Histograms report their sample count and sum.
type Sample struct {
	Name   string
	Labels string
	Value  float64
	Sum    float64
}

// Snapshot holds the transcribrr samples of a gatherer
type Snapshot struct {
	Samples []Sample
}

// Gather collects the transcribrr metrics from the default gatherer
func Gather() (*Snapshot, error) {
	return GatherFrom(prometheus.DefaultGatherer)
}

// GatherFrom collects the transcribrr metrics from g
func GatherFrom(g prometheus.Gatherer) (*Snapshot, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, fmt.Errorf("failed to gather metrics: %w", err)
	}

	snap := &Snapshot{}
	for _, mf := range families {
		name := mf.GetName()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		for _, m := range mf.GetMetric() {
			s := Sample{Name: strings.TrimPrefix(name, prefix), Labels: formatLabels(m.GetLabel())}
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				s.Value = m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				s.Value = m.GetGauge().GetValue()
			case dto.MetricType_HISTOGRAM:
				s.Value = float64(m.GetHistogram().GetSampleCount())
				s.Sum = m.GetHistogram().GetSampleSum()
			default:
				continue
			}
			snap.Samples = append(snap.Samples, s)
		}
	}

	sort.Slice(snap.Samples, func(i, j int) bool {
		if snap.Samples[i].Name != snap.Samples[j].Name {
			return snap.Samples[i].Name < snap.Samples[j].Name
		}
		return snap.Samples[i].Labels < snap.Samples[j].Labels
	})
	return snap, nil
}

// Value returns the value of the sample with the given name and labels
func (s *Snapshot) Value(name, labels string) (float64, bool) {
	for _, sample := range s.Samples {
		if sample.Name == name && sample.Labels == labels {
			return sample.Value, true
		}
	}
	return 0, false
}

// Format renders non-zero samples one per line
func (s *Snapshot) Format() string {
	var b strings.Builder
	for _, sample := range s.Samples {
		if sample.Value == 0 {
			continue
		}
		fmt.Fprintf(&b, "%-40s %-45s %g", sample.Name, sample.Labels, sample.Value)
		if sample.Sum > 0 {
			fmt.Fprintf(&b, " (avg %.2fms)", sample.Sum/sample.Value*1000)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func formatLabels(pairs []*dto.LabelPair) string {
	if len(pairs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p.GetName()+"="+p.GetValue())
	}
	sort.Strings(parts)
	return "{" + strings.Join(parts, ",") + "}"
}
