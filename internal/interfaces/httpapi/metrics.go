package httpapi

import (
	"maps"
	"sync"
	"time"

	"confirmtx/internal/application"
)

// Metrics collects counters for the consumer loop, the confirm view and the
// balance refresher. It implements application.RefresherObserver.
type Metrics struct {
	mu        sync.RWMutex
	startTime time.Time

	kafkaMessages   uint64
	kafkaDecodeErrs uint64
	kafkaApplyErrs  uint64
	kafkaFetchErrs  uint64
	kafkaLastTopic  string
	kafkaLastOffset int64
	kafkaLastLag    time.Duration
	kafkaMaxLag     time.Duration
	kafkaTopicCount map[string]uint64

	batchesFlushed uint64
	lastBatchSize  int

	viewsServed       uint64
	viewsInsufficient uint64
	viewsUnknown      uint64
	lastQueueLength   int

	refreshes       uint64
	balancesChecked uint64
	balancesChanged uint64
	lastRefresh     time.Time
}

var _ application.RefresherObserver = (*Metrics)(nil)

func NewMetrics() *Metrics {
	return &Metrics{
		startTime:       time.Now(),
		kafkaTopicCount: make(map[string]uint64),
	}
}

func (m *Metrics) ObserveKafkaMessage(topic string, offset int64, ts time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kafkaMessages++
	m.kafkaLastTopic = topic
	m.kafkaLastOffset = offset
	if !ts.IsZero() {
		m.kafkaLastLag = time.Since(ts)
		m.kafkaMaxLag = max(m.kafkaMaxLag, m.kafkaLastLag)
	}
	if topic != "" {
		m.kafkaTopicCount[topic]++
	}
}

func (m *Metrics) IncKafkaDecodeErr() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kafkaDecodeErrs++
}

func (m *Metrics) IncKafkaApplyErr() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kafkaApplyErrs++
}

func (m *Metrics) IncKafkaFetchErr() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kafkaFetchErrs++
}

func (m *Metrics) OnBatchFlushed(size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchesFlushed++
	m.lastBatchSize = size
}

func (m *Metrics) OnViewServed(view application.View) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.viewsServed++
	m.lastQueueLength = view.Total
	switch view.Affordability {
	case application.Insufficient:
		m.viewsInsufficient++
	case application.Unknown:
		m.viewsUnknown++
	}
}

func (m *Metrics) OnEmptyQueue() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastQueueLength = 0
}

func (m *Metrics) OnRefresh(_ string, checked int, changed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshes++
	m.balancesChecked += uint64(checked)
	m.balancesChanged += uint64(changed)
	m.lastRefresh = time.Now()
}

type Snapshot struct {
	StartTime         time.Time
	KafkaMessages     uint64
	KafkaDecodeErrs   uint64
	KafkaApplyErrs    uint64
	KafkaFetchErrs    uint64
	KafkaLastTopic    string
	KafkaLastOffset   int64
	KafkaLastLag      time.Duration
	KafkaMaxLag       time.Duration
	KafkaTopicCount   map[string]uint64
	BatchesFlushed    uint64
	LastBatchSize     int
	ViewsServed       uint64
	ViewsInsufficient uint64
	ViewsUnknown      uint64
	LastQueueLength   int
	Refreshes         uint64
	BalancesChecked   uint64
	BalancesChanged   uint64
	LastRefresh       time.Time
}

func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		StartTime:         m.startTime,
		KafkaMessages:     m.kafkaMessages,
		KafkaDecodeErrs:   m.kafkaDecodeErrs,
		KafkaApplyErrs:    m.kafkaApplyErrs,
		KafkaFetchErrs:    m.kafkaFetchErrs,
		KafkaLastTopic:    m.kafkaLastTopic,
		KafkaLastOffset:   m.kafkaLastOffset,
		KafkaLastLag:      m.kafkaLastLag,
		KafkaMaxLag:       m.kafkaMaxLag,
		KafkaTopicCount:   maps.Clone(m.kafkaTopicCount),
		BatchesFlushed:    m.batchesFlushed,
		LastBatchSize:     m.lastBatchSize,
		ViewsServed:       m.viewsServed,
		ViewsInsufficient: m.viewsInsufficient,
		ViewsUnknown:      m.viewsUnknown,
		LastQueueLength:   m.lastQueueLength,
		Refreshes:         m.refreshes,
		BalancesChecked:   m.balancesChecked,
		BalancesChanged:   m.balancesChanged,
		LastRefresh:       m.lastRefresh,
	}
}
