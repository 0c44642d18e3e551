package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitProvider installs a Prometheus-backed MeterProvider as the global
// OTel meter provider and returns a Metrics instance built from it, plus
// an http.Handler serving the scrape endpoint. Call the returned shutdown
// func from main() to flush on exit.
func InitProvider(ctx context.Context) (met *Metrics, handler http.Handler, shutdown func(context.Context) error, err error) {
	promExp, err := promexporter.New()
	if err != nil {
		return nil, nil, nil, err
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(promExp))
	otel.SetMeterProvider(mp)

	met, err = New(mp)
	if err != nil {
		return nil, nil, nil, err
	}

	return met, promhttp.Handler(), mp.Shutdown, nil
}
