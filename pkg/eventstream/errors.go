package eventstream

import "errors"

// ErrNilMetricsEvent indicates a nil metrics event payload was provided to a publisher.
var ErrNilMetricsEvent = errors.New("nil metrics event")
