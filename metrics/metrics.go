// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"errors"
	"time"

	"github.com/luxfi/metric"

	"github.com/luxfi/optionvm/permit"
	"github.com/luxfi/optionvm/utils/wrappers"

	utilmetric "github.com/luxfi/optionvm/utils/metric"
)

const namespace = "optionvm"

var (
	_ Metrics = (*metricsImpl)(nil)

	errNotRegistry = errors.New("registerer must implement metric.Registry")

	// Failures of call authentication. The call was refused before the
	// operation it named ran.
	rejectedErrs = []error{
		permit.ErrExpired,
		permit.ErrInvalidNonce,
		permit.ErrInvalidSignature,
		permit.ErrWrongSigner,
	}
)

type Metrics interface {
	utilmetric.APIInterceptor

	// MarkCommitted records an operation whose state changes were committed.
	MarkCommitted(op string, duration time.Duration)
	// MarkAborted records an operation that was rolled back.
	MarkAborted(op string)
	// MarkEvents records the number of events published by a commit.
	MarkEvents(n int)

	SetSeries(n int)
}

type metricsImpl struct {
	committed metric.CounterVec
	aborted   metric.CounterVec
	events    metric.Counter
	series    metric.Gauge
	duration  utilmetric.Averager

	utilmetric.APIInterceptor
}

func New(registerer metric.Registerer) (Metrics, error) {
	registry, ok := registerer.(metric.Registry)
	if !ok {
		return nil, errNotRegistry
	}
	metricsInstance := metric.NewWithRegistry(namespace, registry)

	m := &metricsImpl{
		committed: metricsInstance.NewCounterVec(
			"operations_committed",
			"Number of operations committed",
			[]string{"op"},
		),
		aborted: metricsInstance.NewCounterVec(
			"operations_aborted",
			"Number of operations rolled back",
			[]string{"op"},
		),
		events: metric.NewCounter(metric.CounterOpts{
			Name: "events_published",
			Help: "Number of ledger events published",
		}),
		series: metric.NewGauge(metric.GaugeOpts{
			Name: "series",
			Help: "Number of option series created",
		}),
	}

	errs := wrappers.Errs{}
	m.duration = utilmetric.NewAveragerWithErrs(
		utilmetric.AppendNamespace(namespace, "operation_duration"),
		"time (in ns) spent executing committed operations",
		registry,
		&errs,
	)
	errs.Add(
		registerer.Register(metric.AsCollector(m.events)),
		registerer.Register(metric.AsCollector(m.series)),
	)

	apiInterceptor, err := utilmetric.NewAPIInterceptor(namespace, namespace, Outcome, registry)
	errs.Add(err)
	m.APIInterceptor = apiInterceptor
	return m, errs.Err
}

func (m *metricsImpl) MarkCommitted(op string, duration time.Duration) {
	m.committed.With(metric.Labels{"op": op}).Inc()
	m.duration.Observe(float64(duration))
}

func (m *metricsImpl) MarkAborted(op string) {
	m.aborted.With(metric.Labels{"op": op}).Inc()
}

func (m *metricsImpl) MarkEvents(n int) {
	m.events.Add(float64(n))
}

func (m *metricsImpl) SetSeries(n int) {
	m.series.Set(float64(n))
}

// Outcome labels a failed API request.
func Outcome(err error) string {
	for _, rejected := range rejectedErrs {
		if errors.Is(err, rejected) {
			return utilmetric.OutcomeRejected
		}
	}
	return utilmetric.OutcomeFailed
}
