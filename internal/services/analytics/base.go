package analytics

import (
	"context"
	"fmt"
	"time"

	svcmetrics "SuperAlgo/internal/service/metrics"
	xhttp "SuperAlgo/pkg/http"
)

// HTTPServiceBase is the shared JSON client for model-service endpoints.
type HTTPServiceBase struct {
	baseURL string
	client  *xhttp.Client
}

func NewHTTPServiceBase(baseURL string, timeout time.Duration) *HTTPServiceBase {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPServiceBase{
		baseURL: baseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

// PostJSON posts the given payload to `path` under baseURL and decodes JSON into dest.
func (b *HTTPServiceBase) PostJSON(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	if b.client == nil || b.baseURL == "" {
		return fmt.Errorf("model service client not initialized")
	}
	start := time.Now()
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     b.baseURL + path,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    payload,
	}, dest)
	svcmetrics.ModelServiceLatency.WithLabelValues(path).Observe(time.Since(start).Seconds())
	if err != nil {
		svcmetrics.ModelServiceErrors.WithLabelValues(path).Inc()
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}
