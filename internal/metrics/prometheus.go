package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ChatTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campusbrain_chat_total",
			Help: "Total chat requests by outcome",
		},
		[]string{"outcome"},
	)

	ChatDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "campusbrain_chat_duration_seconds",
			Help:    "End-to-end chat request duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	RetrievalResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "campusbrain_retrieval_results",
			Help:    "Number of passages retrieved per query",
			Buckets: []float64{0, 1, 2, 3, 5, 10},
		},
	)

	SegmentsIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "campusbrain_segments_ingested_total",
			Help: "Total text segments upserted into the vector index",
		},
	)

	IngestFileErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "campusbrain_ingest_file_errors_total",
			Help: "Total per-file ingestion failures",
		},
	)

	RateLimitRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "campusbrain_ratelimit_rejections_total",
			Help: "Total requests rejected by the inbound rate limiter",
		},
	)

	LLMTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campusbrain_llm_tokens_total",
			Help: "Total tokens consumed by completions",
		},
		[]string{"kind"},
	)
)

func Init() {
	prometheus.MustRegister(ChatTotal)
	prometheus.MustRegister(ChatDuration)
	prometheus.MustRegister(RetrievalResults)
	prometheus.MustRegister(SegmentsIngested)
	prometheus.MustRegister(IngestFileErrors)
	prometheus.MustRegister(RateLimitRejections)
	prometheus.MustRegister(LLMTokens)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
