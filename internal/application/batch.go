package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"confirmtx/internal/streaming"

	"github.com/segmentio/kafka-go"
)

// Batch buffers decoded events so their offsets can be committed together.
// Events are applied in arrival order because an approval may be added and
// removed within the same batch.
type Batch struct {
	events   []streaming.Message
	messages []kafka.Message
	added    int
	removed  int
	balances int
	offsets  map[int]offsetRange
}

type offsetRange struct {
	first int64
	last  int64
}

func NewBatch() *Batch {
	return &Batch{
		offsets: make(map[int]offsetRange),
	}
}

func (b *Batch) Add(msg streaming.Message, kafkaMsg kafka.Message) {
	switch msg.Type {
	case streaming.MessageTypeAdded:
		b.added++
	case streaming.MessageTypeRemoved:
		b.removed++
	case streaming.MessageTypeBalance:
		b.balances++
	}

	b.events = append(b.events, msg)
	b.messages = append(b.messages, kafkaMsg)

	offset := kafkaMsg.Offset
	current, ok := b.offsets[kafkaMsg.Partition]
	if !ok {
		current = offsetRange{first: offset, last: offset}
	}
	current.first = min(current.first, offset)
	current.last = max(current.last, offset)
	b.offsets[kafkaMsg.Partition] = current
}

// OffsetRanges describes the buffered offsets per partition as
// "partition:first-last", ordered by partition.
func (b *Batch) OffsetRanges() []string {
	partitions := make([]int, 0, len(b.offsets))
	for partition := range b.offsets {
		partitions = append(partitions, partition)
	}
	sort.Ints(partitions)
	ranges := make([]string, 0, len(partitions))
	for _, partition := range partitions {
		r := b.offsets[partition]
		ranges = append(ranges, fmt.Sprintf("%d:%d-%d", partition, r.first, r.last))
	}
	return ranges
}

func (b *Batch) Len() int {
	return len(b.messages)
}

type Committer interface {
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Flush applies every buffered event and commits the offsets. Nothing is
// committed if an event fails, so the whole batch is redelivered; stores
// must treat repeated adds and removes as no-ops.
func (b *Batch) Flush(ctx context.Context, repo ApprovalRepository, committer Committer) error {
	if b.Len() == 0 {
		return nil
	}

	start := time.Now()

	for i, event := range b.events {
		if err := ApplyMessage(ctx, repo, event); err != nil {
			return fmt.Errorf("failed to apply event %d (%s %s): %w", i, event.Type, event.ID, err)
		}
	}

	if err := committer.CommitMessages(ctx, b.messages...); err != nil {
		return fmt.Errorf("failed to commit kafka messages: %w", err)
	}

	slog.Info("flushed batch",
		"count", b.Len(),
		"added", b.added,
		"removed", b.removed,
		"balances", b.balances,
		"offsets", b.OffsetRanges(),
		"duration", time.Since(start),
	)

	b.Reset()
	return nil
}

func (b *Batch) Reset() {
	b.events = b.events[:0]
	b.messages = b.messages[:0]
	b.added = 0
	b.removed = 0
	b.balances = 0
	clear(b.offsets)
}
