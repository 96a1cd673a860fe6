package capture

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts what the receive callback saw. Per-type counters are resolved
// up front so the callback path only does atomic increments.
type Metrics struct {
	gatherer prometheus.Gatherer

	Frames           prometheus.Counter
	ShortFrames      prometheus.Counter
	AddressesQueued  prometheus.Counter
	AddressesDropped prometheus.Counter

	framesByType [4]prometheus.Counter
}

// NewMetrics registers the capture collectors, defaulting to the global registry when reg is nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	frames, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "macsniff_capture_frames_total",
		Help: "Frames delivered to the receive callback.",
	}), "macsniff_capture_frames_total")
	if err != nil {
		return nil, err
	}
	short, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "macsniff_capture_short_frames_total",
		Help: "Frames rejected because they are shorter than the fixed header.",
	}), "macsniff_capture_short_frames_total")
	if err != nil {
		return nil, err
	}
	queued, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "macsniff_capture_addresses_queued_total",
		Help: "Addresses accepted by the capture queue.",
	}), "macsniff_capture_addresses_queued_total")
	if err != nil {
		return nil, err
	}
	dropped, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "macsniff_capture_addresses_dropped_total",
		Help: "Addresses dropped because the capture queue was full or closed.",
	}), "macsniff_capture_addresses_dropped_total")
	if err != nil {
		return nil, err
	}

	byType := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "macsniff_capture_frames_by_type_total",
		Help: "Frames delivered to the receive callback, labeled by 802.11 frame type.",
	}, []string{"type"})
	byType, err = registerCounterVec(reg, byType, "macsniff_capture_frames_by_type_total")
	if err != nil {
		return nil, err
	}

	m := &Metrics{
		gatherer:         gatherer,
		Frames:           frames,
		ShortFrames:      short,
		AddressesQueued:  queued,
		AddressesDropped: dropped,
	}
	for t := range m.framesByType {
		m.framesByType[t] = byType.WithLabelValues(FrameType(t).String())
	}

	return m, nil
}

func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil || m.gatherer == nil {
		return prometheus.DefaultGatherer
	}

	return m.gatherer
}

// Totals flattens the gathered counters into name -> value, summing label sets.
func (m *Metrics) Totals() (map[string]float64, error) {
	families, err := m.Gatherer().Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	out := make(map[string]float64, len(families))
	for _, mf := range families {
		var sum float64
		for _, metric := range mf.GetMetric() {
			sum += metric.GetCounter().GetValue()
		}
		out[mf.GetName()] = sum
	}

	return out, nil
}

// FramesOfType returns the counter for one frame type.
func (m *Metrics) FramesOfType(t FrameType) prometheus.Counter {
	return m.framesByType[t&0x03]
}

func (m *Metrics) observeFrame(t FrameType) {
	if m == nil {
		return
	}
	m.Frames.Inc()
	m.framesByType[t&0x03].Inc()
}

func (m *Metrics) observeShort() {
	if m == nil {
		return
	}
	m.Frames.Inc()
	m.ShortFrames.Inc()
}

func (m *Metrics) observeOffer(accepted bool) {
	if m == nil {
		return
	}
	if accepted {
		m.AddressesQueued.Inc()
		return
	}
	m.AddressesDropped.Inc()
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}

	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}

	return vec, nil
}
