// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "papershelf"

var registerOnce sync.Once

// Register registers the domain collectors with the default registry.
// Safe to call more than once; HTTP collectors are registered at init.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			EmbeddingRequestsTotal,
			EmbeddingRequestDuration,
			EmbeddingTokensTotal,
			EmbeddingErrorsTotal,
			EmbeddingCacheTotal,
			GenerationRequestsTotal,
			GenerationRequestDuration,
			GenerationErrorsTotal,
			GenerationTokensTotal,
			PipelineStageDuration,
			IngestedDocumentsTotal,
			IngestedChunksTotal,
		)
	})
}
