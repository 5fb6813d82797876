package otel

import (
	"context"
	"errors"
	"fmt"

	goWA "github.com/MrEthical07/goWA"
	"github.com/MrEthical07/goWA/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Constructor errors.
var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Source is read once per collection cycle. *goWA.Engine implements it.
type Source interface {
	MetricsSnapshot() goWA.MetricsSnapshot
	AuditDropped() uint64
}

// statusSource is optionally implemented by a Source that can list live
// sessions; the wagw_sessions gauge is registered only then.
type statusSource interface {
	ListStatuses() []goWA.SessionStatus
}

type latencyInstruments struct {
	id      goWA.MetricID
	buckets [8]metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// OTelExporter publishes gateway snapshots through observable instruments
// until Close unregisters its callback.
type OTelExporter struct {
	source   Source
	statuses statusSource

	counters     map[goWA.MetricID]metric.Int64ObservableCounter
	latency      []latencyInstruments
	auditDropped metric.Int64ObservableCounter
	sessions     metric.Int64ObservableGauge
	stateAttrs   []metric.ObserveOption

	registration metric.Registration
}

// NewOTelExporter registers instruments on meter that read from engine.
func NewOTelExporter(meter metric.Meter, engine *goWA.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

// NewOTelExporterFromSource registers instruments that read from source.
func NewOTelExporterFromSource(meter metric.Meter, source Source) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{
		source:   source,
		counters: make(map[goWA.MetricID]metric.Int64ObservableCounter, len(internaldefs.CounterDefs)),
	}
	e.statuses, _ = source.(statusSource)

	observables, err := e.createInstruments(meter)
	if err != nil {
		return nil, err
	}

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *OTelExporter) createInstruments(meter metric.Meter) ([]metric.Observable, error) {
	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", def.Name, err)
		}
		e.counters[def.ID] = ins
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		h := latencyInstruments{id: def.ID}
		for i, suffix := range internaldefs.HistogramBoundSuffix {
			name := def.Name + "_bucket_le_" + suffix
			ins, err := meter.Int64ObservableGauge(name,
				metric.WithDescription("Cumulative count of sends at or below "+internaldefs.HistogramBounds[i]+"s."))
			if err != nil {
				return nil, fmt.Errorf("create bucket %s: %w", name, err)
			}
			h.buckets[i] = ins
			observables = append(observables, ins)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count", metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create %s_count: %w", def.Name, err)
		}
		h.count = count
		observables = append(observables, count)
		e.latency = append(e.latency, h)
	}

	dropped, err := meter.Int64ObservableCounter("wagw_audit_dropped_total",
		metric.WithDescription("Audit events dropped on a full dispatcher buffer."))
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	e.auditDropped = dropped
	observables = append(observables, dropped)

	if e.statuses != nil {
		sessions, err := meter.Int64ObservableGauge(internaldefs.SessionGaugeName,
			metric.WithDescription(internaldefs.SessionGaugeHelp))
		if err != nil {
			return nil, fmt.Errorf("create session gauge: %w", err)
		}
		e.sessions = sessions
		observables = append(observables, sessions)
		for _, state := range internaldefs.SessionStates {
			e.stateAttrs = append(e.stateAttrs, metric.WithAttributes(attribute.String("state", state.String())))
		}
	}
	return observables, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for id, ins := range e.counters {
		o.ObserveInt64(ins, int64(snapshot.Counters[id]))
	}

	for _, h := range e.latency {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[h.id]))
		for i, n := range cumulative {
			o.ObserveInt64(h.buckets[i], int64(n))
		}
		o.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
	}

	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))

	if e.statuses != nil {
		for i, n := range internaldefs.CountByState(e.statuses.ListStatuses()) {
			o.ObserveInt64(e.sessions, int64(n), e.stateAttrs[i])
		}
	}
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
