package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bkyoung/review-pipeline/internal/correlation"
	"github.com/bkyoung/review-pipeline/internal/domain"
)

// RedisConfig tunes the streams-backed bus.
type RedisConfig struct {
	// Partitions is the number of streams per topic. Events are routed to
	// a partition by repository key, so ordering holds per repository
	// while different repositories process in parallel.
	Partitions int
	// Group is the consumer group name, one group per pipeline stage.
	Group string
	// Consumer is this process's name inside the group.
	Consumer string
	// Block is how long a read blocks waiting for new entries.
	Block time.Duration
	// MinIdle is how long a pending entry may sit unacked before another
	// read reclaims it for redelivery.
	MinIdle time.Duration
	// MaxDeliveries caps redeliveries of a failing entry. Once an entry
	// has been delivered this many times it is forwarded to the topic's
	// dead-letter stream and acked, so one poison event cannot recycle
	// forever and stall its partition.
	MaxDeliveries int
}

func (c RedisConfig) withDefaults() RedisConfig {
	if c.Partitions <= 0 {
		c.Partitions = 4
	}
	if c.Block <= 0 {
		c.Block = 5 * time.Second
	}
	if c.MinIdle <= 0 {
		c.MinIdle = 30 * time.Second
	}
	if c.MaxDeliveries <= 0 {
		c.MaxDeliveries = 5
	}
	return c
}

// Redis is the production bus: one Redis stream per topic partition,
// consumer groups for each stage, XACK on handler success. Unacked
// entries are reclaimed after MinIdle, giving at-least-once delivery.
type Redis struct {
	client *redis.Client
	cfg    RedisConfig
	logger *slog.Logger

	mu       sync.Mutex
	handlers map[string]Handler
}

// NewRedis creates a streams-backed bus on an existing client.
func NewRedis(client *redis.Client, cfg RedisConfig, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{
		client:   client,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		handlers: make(map[string]Handler),
	}
}

var _ Publisher = (*Redis)(nil)
var _ Consumer = (*Redis)(nil)

func (r *Redis) stream(topic string, partition int) string {
	return fmt.Sprintf("%s.p%d", topic, partition)
}

func deadLetterStream(topic string) string {
	return topic + ".dlt"
}

// Publish appends the event to its partition stream. The XADD reply is
// the broker ack; an error here is the caller's to handle.
func (r *Redis) Publish(ctx context.Context, topic string, event domain.Event) error {
	env, err := Seal(topic, event)
	if err != nil {
		return err
	}

	stream := r.stream(topic, Partition(env.Key, r.cfg.Partitions))
	if err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			"event_id":       env.EventID,
			"key":            env.Key,
			"correlation_id": env.CorrelationID,
			"payload":        string(env.Payload),
			"attempt":        env.Attempt,
		},
	}).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", stream, err)
	}

	r.logger.DebugContext(ctx, "event published",
		"topic", topic,
		"stream", stream,
		"event_id", env.EventID,
		"key", env.Key)
	return nil
}

// Subscribe registers the handler for a topic. Must be called before Run.
func (r *Redis) Subscribe(topic string, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.handlers[topic]; dup {
		return fmt.Errorf("topic %s already subscribed", topic)
	}
	r.handlers[topic] = h
	return nil
}

// Run creates the consumer groups and starts one worker goroutine per
// topic partition. A single worker owns each partition stream, which is
// what keeps per-repository processing in publish order. Blocks until
// ctx is cancelled.
func (r *Redis) Run(ctx context.Context) error {
	r.mu.Lock()
	topics := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		topics = append(topics, t)
	}
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, topic := range topics {
		for p := 0; p < r.cfg.Partitions; p++ {
			stream := r.stream(topic, p)
			if err := r.ensureGroup(ctx, stream); err != nil {
				return err
			}
			wg.Add(1)
			go func(topic, stream string, partition int) {
				defer wg.Done()
				r.consumeLoop(ctx, topic, stream, partition)
			}(topic, stream, p)
		}
	}
	wg.Wait()
	return ctx.Err()
}

// ensureGroup creates the consumer group from the start of the stream,
// so entries published before the group existed are not lost.
func (r *Redis) ensureGroup(ctx context.Context, stream string) error {
	err := r.client.XGroupCreateMkStream(ctx, stream, r.cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create group %s on %s: %w", r.cfg.Group, stream, err)
	}
	return nil
}

func (r *Redis) consumeLoop(ctx context.Context, topic, stream string, partition int) {
	consumer := fmt.Sprintf("%s-p%d", r.cfg.Consumer, partition)

	for ctx.Err() == nil {
		// Reclaim entries another consumer left pending, then read new ones.
		r.reclaim(ctx, topic, stream, consumer)

		res, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    r.cfg.Group,
			Consumer: consumer,
			Streams:  []string{stream, ">"},
			Count:    1,
			Block:    r.cfg.Block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			r.logger.ErrorContext(ctx, "stream read failed", "stream", stream, "error", err)
			time.Sleep(time.Second)
			continue
		}

		for _, s := range res {
			for _, msg := range s.Messages {
				r.dispatch(ctx, topic, stream, msg, 1)
			}
		}
	}
}

func (r *Redis) reclaim(ctx context.Context, topic, stream, consumer string) {
	msgs, _, err := r.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   stream,
		Group:    r.cfg.Group,
		Consumer: consumer,
		MinIdle:  r.cfg.MinIdle,
		Start:    "0",
		Count:    10,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) && ctx.Err() == nil {
		r.logger.WarnContext(ctx, "pending reclaim failed", "stream", stream, "error", err)
		return
	}
	if len(msgs) == 0 {
		return
	}

	deliveries := r.deliveryCounts(ctx, stream, msgs)
	for _, msg := range msgs {
		attempt := deliveries[msg.ID]
		if attempt >= r.cfg.MaxDeliveries {
			r.deadLetter(ctx, topic, stream, msg, attempt)
			continue
		}
		r.dispatch(ctx, topic, stream, msg, attempt)
	}
}

// deliveryCounts reads how many times each claimed entry has been
// delivered from the group's pending entries list. Entries missing
// from the reply fall back to 1 so they are never dead-lettered on a
// bookkeeping gap.
func (r *Redis) deliveryCounts(ctx context.Context, stream string, msgs []redis.XMessage) map[string]int {
	counts := make(map[string]int, len(msgs))
	for _, msg := range msgs {
		counts[msg.ID] = 1
	}
	pending, err := r.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: stream,
		Group:  r.cfg.Group,
		Start:  msgs[0].ID,
		End:    msgs[len(msgs)-1].ID,
		Count:  int64(len(msgs)),
	}).Result()
	if err != nil {
		if ctx.Err() == nil {
			r.logger.WarnContext(ctx, "pending lookup failed", "stream", stream, "error", err)
		}
		return counts
	}
	for _, p := range pending {
		if _, claimed := counts[p.ID]; claimed && p.RetryCount > 0 {
			counts[p.ID] = int(p.RetryCount)
		}
	}
	return counts
}

// deadLetter forwards an exhausted entry to the topic's dead-letter
// stream and acks the original, trading the event for its partition's
// liveness. An operator can XRANGE the .dlt stream to inspect or
// replay it.
func (r *Redis) deadLetter(ctx context.Context, topic, stream string, msg redis.XMessage, attempt int) {
	values := make(map[string]any, len(msg.Values)+1)
	for k, v := range msg.Values {
		values[k] = v
	}
	values["attempt"] = attempt
	values["source_stream"] = stream

	dlt := deadLetterStream(topic)
	if err := r.client.XAdd(ctx, &redis.XAddArgs{Stream: dlt, Values: values}).Err(); err != nil {
		if ctx.Err() == nil {
			r.logger.ErrorContext(ctx, "dead-letter forward failed, entry stays pending",
				"stream", stream, "entry_id", msg.ID, "error", err)
		}
		return
	}
	r.logger.ErrorContext(ctx, "delivery attempts exhausted, entry dead-lettered",
		"topic", topic,
		"stream", stream,
		"dlt", dlt,
		"entry_id", msg.ID,
		"attempt", attempt)
	r.ack(ctx, stream, msg.ID)
}

// dispatch decodes one stream entry and hands it to the topic handler.
// Handler success acks the entry; failure leaves it pending for a later
// reclaim, which is the redelivery path until MaxDeliveries is hit.
func (r *Redis) dispatch(ctx context.Context, topic, stream string, msg redis.XMessage, attempt int) {
	env, err := parseEnvelope(topic, msg)
	if err != nil {
		// Unparseable entries are poison: ack so they stop recycling.
		r.logger.ErrorContext(ctx, "discarding malformed stream entry",
			"stream", stream, "entry_id", msg.ID, "error", err)
		r.ack(ctx, stream, msg.ID)
		return
	}
	if attempt > env.Attempt {
		env.Attempt = attempt
	}

	r.mu.Lock()
	h := r.handlers[topic]
	r.mu.Unlock()

	hctx := correlation.NewContext(ctx, env.CorrelationID)
	if err := h(hctx, env); err != nil {
		r.logger.ErrorContext(hctx, "handler failed, leaving entry pending",
			"topic", topic,
			"event_id", env.EventID,
			"attempt", env.Attempt,
			"error", err)
		return
	}
	r.ack(ctx, stream, msg.ID)
}

func (r *Redis) ack(ctx context.Context, stream, id string) {
	if err := r.client.XAck(ctx, stream, r.cfg.Group, id).Err(); err != nil && ctx.Err() == nil {
		r.logger.WarnContext(ctx, "xack failed", "stream", stream, "entry_id", id, "error", err)
	}
}

func parseEnvelope(topic string, msg redis.XMessage) (Envelope, error) {
	payload, ok := msg.Values["payload"].(string)
	if !ok || payload == "" {
		return Envelope{}, fmt.Errorf("missing payload")
	}
	env := Envelope{
		Topic:   topic,
		Payload: []byte(payload),
		Attempt: 1,
	}
	if v, ok := msg.Values["event_id"].(string); ok {
		env.EventID = v
	}
	if v, ok := msg.Values["key"].(string); ok {
		env.Key = v
	}
	if v, ok := msg.Values["correlation_id"].(string); ok {
		env.CorrelationID = v
	}
	if v, ok := msg.Values["attempt"].(string); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			env.Attempt = n
		}
	}
	return env, nil
}
