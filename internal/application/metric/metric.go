package metric

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP метрики - количество запросов
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Общее количество HTTP запросов",
		},
		[]string{"method", "endpoint", "status"},
	)

	// HTTP метрики - время обработки запросов
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Время обработки HTTP запросов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	httpErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Общее количество HTTP ошибок",
		},
		[]string{"method", "endpoint", "status"},
	)

	// WS метрики - количество активных соединений
	wsActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_active_connections",
			Help: "Количество активных WebSocket соединений",
		},
	)

	wsEvictedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ws_evicted_subscribers_total",
			Help: "Подписчики, отключенные из-за переполненной очереди отправки",
		},
	)

	roomEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "room_events_published_total",
			Help: "Опубликованные события комнат по типу",
		},
		[]string{"type"},
	)

	timerTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timer_transitions_total",
			Help: "Переходы общего таймера по действию",
		},
		[]string{"action"},
	)

	openSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "study_sessions_open",
			Help: "Количество открытых учебных сессий на инстансе",
		},
	)
)

// RecordHTTPMetrics записывает метрики HTTP запроса
func RecordHTTPMetrics(method, endpoint string, status int, duration time.Duration) {
	strStatus := strconv.Itoa(status)

	httpRequestsTotal.WithLabelValues(method, endpoint, strStatus).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, strStatus).Observe(duration.Seconds())

	if status >= 400 {
		httpErrorsTotal.WithLabelValues(method, endpoint, strStatus).Inc()
	}
}

func IncrementWSActiveConnections() {
	wsActiveConnections.Inc()
}

func DecrementWSActiveConnections() {
	wsActiveConnections.Dec()
}

func IncrementEvictedSubscribers() {
	wsEvictedTotal.Inc()
}

func RecordRoomEvent(eventType string) {
	roomEventsTotal.WithLabelValues(eventType).Inc()
}

func RecordTimerTransition(action string) {
	timerTransitionsTotal.WithLabelValues(action).Inc()
}

func IncrementOpenSessions() {
	openSessions.Inc()
}

func DecrementOpenSessions() {
	openSessions.Dec()
}
