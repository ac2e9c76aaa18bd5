// Package metrics counts pipeline events and renders them in the Prometheus
// text exposition format.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Metric names exposed on /metrics.
const (
	RunsTotal        = "assessor_runs_total"
	BatchesTotal     = "assessor_batches_total"
	TasksTotal       = "assessor_tasks_total"
	InferenceTotal   = "assessor_inference_requests_total"
	RiskWritesTotal  = "assessor_risk_writes_total"
	AlertsTotal      = "assessor_alerts_created_total"
	LastRunTimestamp = "assessor_last_run_timestamp_seconds"
	LastRunDuration  = "assessor_last_run_duration_seconds"
	QueuePending     = "assessor_queue_pending"
	QueueInFlight    = "assessor_queue_in_flight"
	QueueCompleted   = "assessor_queue_completed_total"
)

type family struct {
	name   string
	help   string
	typ    dto.MetricType
	label  string // empty for unlabelled families
	values map[string]float64
}

// QueueStats is the subset of queue counters sampled at exposition time.
type QueueStats struct {
	Pending   int
	InFlight  int
	Completed uint64
}

// Registry is safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	families map[string]*family
	queue    func() QueueStats
}

func New() *Registry {
	r := &Registry{families: make(map[string]*family)}
	r.define(RunsTotal, "Scheduled assessment runs by result.", dto.MetricType_COUNTER, "result")
	r.define(BatchesTotal, "Batches evaluated by outcome.", dto.MetricType_COUNTER, "outcome")
	r.define(TasksTotal, "Queued assessment tasks by result.", dto.MetricType_COUNTER, "result")
	r.define(InferenceTotal, "Inference calls by result.", dto.MetricType_COUNTER, "result")
	r.define(RiskWritesTotal, "Risk write-backs by provenance.", dto.MetricType_COUNTER, "provenance")
	r.define(AlertsTotal, "Alerts created by risk level.", dto.MetricType_COUNTER, "level")
	r.define(LastRunTimestamp, "Unix time the last run completed.", dto.MetricType_GAUGE, "")
	r.define(LastRunDuration, "Wall time of the last run, including drain.", dto.MetricType_GAUGE, "")
	return r
}

func (r *Registry) define(name, help string, typ dto.MetricType, label string) {
	r.families[name] = &family{name: name, help: help, typ: typ, label: label, values: make(map[string]float64)}
}

// SetQueueSource registers the function sampled for the queue gauges.
func (r *Registry) SetQueueSource(fn func() QueueStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = fn
}

// Inc adds one to the counter name for the given label value.
func (r *Registry) Inc(name, labelValue string) {
	r.Add(name, labelValue, 1)
}

// Add adds v to the counter name for the given label value.
func (r *Registry) Add(name, labelValue string, v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.families[name]
	if !ok {
		return
	}
	f.values[labelValue] += v
}

// ObserveRun records the completion of a run.
func (r *Registry) ObserveRun(result string, finished time.Time, took time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.families[RunsTotal].values[result]++
	r.families[LastRunTimestamp].values[""] = float64(finished.Unix())
	r.families[LastRunDuration].values[""] = took.Seconds()
}

// Value returns the current value of a counter or gauge.
func (r *Registry) Value(name, labelValue string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.families[name]; ok {
		return f.values[labelValue]
	}
	return 0
}

// WriteTo renders every family in the text exposition format.
func (r *Registry) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, mf := range r.gather() {
		n, err := expfmt.MetricFamilyToText(w, mf)
		total += int64(n)
		if err != nil {
			return total, fmt.Errorf("metrics: write %s: %w", mf.GetName(), err)
		}
	}
	return total, nil
}

func (r *Registry) gather() []*dto.MetricFamily {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*dto.MetricFamily, 0, len(r.families)+3)
	for _, f := range r.families {
		if len(f.values) == 0 {
			continue
		}
		out = append(out, f.toProto())
	}
	if r.queue != nil {
		s := r.queue()
		out = append(out,
			single(QueuePending, "Tasks waiting for admission.", dto.MetricType_GAUGE, float64(s.Pending)),
			single(QueueInFlight, "Tasks currently executing.", dto.MetricType_GAUGE, float64(s.InFlight)),
			single(QueueCompleted, "Tasks finished since start.", dto.MetricType_COUNTER, float64(s.Completed)),
		)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GetName() < out[j].GetName() })
	return out
}

func (f *family) toProto() *dto.MetricFamily {
	keys := make([]string, 0, len(f.values))
	for k := range f.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	mf := &dto.MetricFamily{Name: ptr(f.name), Help: ptr(f.help), Type: f.typ.Enum()}
	for _, k := range keys {
		m := sample(f.typ, f.values[k])
		if f.label != "" {
			m.Label = []*dto.LabelPair{{Name: ptr(f.label), Value: ptr(k)}}
		}
		mf.Metric = append(mf.Metric, m)
	}
	return mf
}

func single(name, help string, typ dto.MetricType, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   ptr(name),
		Help:   ptr(help),
		Type:   typ.Enum(),
		Metric: []*dto.Metric{sample(typ, v)},
	}
}

func sample(typ dto.MetricType, v float64) *dto.Metric {
	if typ == dto.MetricType_COUNTER {
		return &dto.Metric{Counter: &dto.Counter{Value: ptr(v)}}
	}
	return &dto.Metric{Gauge: &dto.Gauge{Value: ptr(v)}}
}

func ptr[T any](v T) *T { return &v }
