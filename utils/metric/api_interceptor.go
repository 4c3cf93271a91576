// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package utilmetric

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/rpc/v2"
	metric "github.com/luxfi/metric"
)

const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// APIInterceptor records the count, latency and outcome of every JSON-RPC
// method served.
type APIInterceptor interface {
	InterceptRequest(i *rpc.RequestInfo) *http.Request
	AfterRequest(i *rpc.RequestInfo)
}

// Classifier maps a failed request to its outcome label. Requests the server
// refused to act on are OutcomeRejected.
type Classifier func(err error) string

type contextKey int

const requestTimestampKey contextKey = iota

type apiInterceptor struct {
	service  string
	classify Classifier

	requests metric.CounterVec
	duration metric.HistogramVec
}

// NewAPIInterceptor reports the methods of service labeled by their short
// name. A nil classify labels every failure OutcomeFailed.
func NewAPIInterceptor(namespace, service string, classify Classifier, registry metric.Registry) (APIInterceptor, error) {
	if registry == nil {
		return nil, ErrFailedRegistering
	}
	if classify == nil {
		classify = func(error) string { return OutcomeFailed }
	}
	metricsInstance := metric.NewWithRegistry(AppendNamespace(namespace, "api"), registry)

	return &apiInterceptor{
		service:  service,
		classify: classify,
		requests: metricsInstance.NewCounterVec(
			"requests",
			"Number of requests served by method and outcome",
			[]string{"method", "outcome"},
		),
		duration: metricsInstance.NewHistogramVec(
			"request_duration_seconds",
			"Time spent handling requests by method",
			[]string{"method"},
			nil,
		),
	}, nil
}

func (*apiInterceptor) InterceptRequest(i *rpc.RequestInfo) *http.Request {
	ctx := i.Request.Context()
	ctx = context.WithValue(ctx, requestTimestampKey, time.Now())
	return i.Request.WithContext(ctx)
}

func (apr *apiInterceptor) AfterRequest(i *rpc.RequestInfo) {
	timestamp, ok := i.Request.Context().Value(requestTimestampKey).(time.Time)
	if !ok {
		return
	}

	method := apr.method(i.Method)
	outcome := OutcomeOK
	if i.Error != nil {
		outcome = apr.classify(i.Error)
	}
	apr.requests.WithLabelValues(method, outcome).Inc()
	apr.duration.WithLabelValues(method).Observe(time.Since(timestamp).Seconds())
}

// method strips the service prefix, so "optionvm.mint" is labeled "mint".
func (apr *apiInterceptor) method(name string) string {
	if short, ok := strings.CutPrefix(name, apr.service+"."); ok {
		return short
	}
	return name
}
