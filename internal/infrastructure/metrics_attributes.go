package infrastructure

import (
	"strconv"

	"go.opentelemetry.io/otel/attribute"
)

const (
	httpMethodKey     = "http.method"
	httpPathKey       = "http.path"
	httpStatusCodeKey = "http.status_code"
	statusKey         = "status"
	routingKeyKey     = "messaging.rabbitmq.destination.routing_key"
	outcomeKey        = "messaging.outcome"
	useCaseKey        = "usecase"
)

func HTTPMethodAttr(method string) attribute.KeyValue {
	return attribute.String(httpMethodKey, method)
}

func HTTPPathAttr(path string) attribute.KeyValue {
	return attribute.String(httpPathKey, path)
}

func HTTPStatusCodeAttr(code int) attribute.KeyValue {
	return attribute.String(httpStatusCodeKey, strconv.Itoa(code))
}

func StatusAttr(success bool) attribute.KeyValue {
	if success {
		return attribute.String(statusKey, "success")
	}

	return attribute.String(statusKey, "error")
}

func RoutingKeyAttr(routingKey string) attribute.KeyValue {
	return attribute.String(routingKeyKey, routingKey)
}

func OutcomeAttr(outcome string) attribute.KeyValue {
	return attribute.String(outcomeKey, outcome)
}

func UseCaseAttr(name string) attribute.KeyValue {
	return attribute.String(useCaseKey, name)
}
