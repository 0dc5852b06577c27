package queuelab

import (
	"github.com/juju/loggo"

	"github.com/timzifer/queuelab/alloc"
	"github.com/timzifer/queuelab/internal/telemetry"
)

type options struct {
	alloc   alloc.Allocator
	logger  loggo.Logger
	metrics *telemetry.OpMetrics
}

// Option configures a Queue created by New.
type Option func(*options)

func defaultOptions() options {
	return options{
		alloc:   alloc.Heap,
		logger:  logger,
		metrics: telemetry.DefaultOpMetrics(),
	}
}

// WithAllocator makes the queue draw its header, node and payload storage
// from a.
func WithAllocator(a alloc.Allocator) Option {
	return func(o *options) {
		if a != nil {
			o.alloc = a
		}
	}
}

// WithLogger replaces the package logger.
func WithLogger(l loggo.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics records operation metrics into m instead of the process wide
// default.
func WithMetrics(m *telemetry.OpMetrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}
