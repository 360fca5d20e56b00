package decorator

import (
	"context"
	"strings"
)

type (
	commandMetricsDecorator[C any, R any] struct {
		base   CommandHandler[C, R]
		client MetricsClient
	}

	queryMetricsDecorator[Q any, R any] struct {
		base   QueryHandler[Q, R]
		client MetricsClient
	}
)

func (d commandMetricsDecorator[C, R]) Handle(ctx context.Context, cmd C) (result R, err error) {
	defer func() {
		d.client.Inc(metricKey("commands", actionName(cmd), err), 1)
	}()

	return d.base.Handle(ctx, cmd)
}

func (d queryMetricsDecorator[Q, R]) Execute(ctx context.Context, query Q) (result R, err error) {
	defer func() {
		d.client.Inc(metricKey("queries", actionName(query), err), 1)
	}()

	return d.base.Execute(ctx, query)
}

// metricKey builds "<kind>.<action>.<success|failure>".
func metricKey(kind, action string, err error) string {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}

	return strings.Join([]string{kind, strings.ToLower(action), outcome}, ".")
}
