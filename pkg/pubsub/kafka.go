package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/rs/zerolog"
)

const (
	kafkaReadTimeout    = 500 * time.Millisecond
	kafkaFlushTimeoutMs = 5000
	headerEventType     = "event_type"
)

// channelToTopicAndKey maps a channel to a Kafka topic and message key.
// Keying by room keeps each room's messages on one partition, in order.
//
//	"relay:room:room_u1_u2:to_members" → topic: "relay-to-members", key: "room_u1_u2"
func channelToTopicAndKey(channel string) (topic, key string, err error) {
	prefix, roomKey, suffix, err := parseChannel(channel)
	if err != nil {
		return "", "", err
	}
	return prefix + "-" + strings.ReplaceAll(suffix, "_", "-"), roomKey, nil
}

// patternToTopic maps a "*" room pattern to its topic.
//
//	"relay:room:*:to_members" → "relay-to-members"
func patternToTopic(pattern string) (string, error) {
	topic, key, err := channelToTopicAndKey(pattern)
	if err != nil {
		return "", err
	}
	if key != "*" {
		return "", fmt.Errorf("unsupported pattern: %s", pattern)
	}
	return topic, nil
}

// consumerGroup gives single-room subscriptions their own group so they
// do not steal partitions from the instance-wide pattern consumer.
func consumerGroup(base, subKey string, single bool) string {
	if base == "" {
		base = DefaultConfig().Kafka.GroupID
	}
	if !single {
		return base
	}
	return base + "-" + groupIDRegexp.ReplaceAllString(subKey, "-")
}

var groupIDRegexp = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

type kafkaSubscription struct {
	consumer *kafka.Consumer
	cancel   context.CancelFunc
	done     chan struct{}
}

func (s *kafkaSubscription) stop() error {
	s.cancel()
	<-s.done
	return s.consumer.Close()
}

// KafkaPubSub implements PubSub on Kafka topics. Publish waits for the
// broker's delivery report, so a nil error means the event was stored.
type KafkaPubSub struct {
	producer *kafka.Producer
	config   KafkaConfig
	buffer   int
	logger   zerolog.Logger

	mu   sync.Mutex
	subs map[string]*kafkaSubscription

	eventsDone chan struct{}
}

func NewKafkaPubSub(cfg KafkaConfig, buffer int, logger zerolog.Logger) (*KafkaPubSub, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
		"acks":              "1",
		"linger.ms":         5,
		"compression.type":  "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	if buffer <= 0 {
		buffer = DefaultConfig().Buffer
	}

	k := &KafkaPubSub{
		producer:   p,
		config:     cfg,
		buffer:     buffer,
		logger:     logger.With().Str("pubsub", DriverKafka).Logger(),
		subs:       make(map[string]*kafkaSubscription),
		eventsDone: make(chan struct{}),
	}
	go k.watchProducer()

	if err := k.createTopics(); err != nil {
		k.logger.Warn().Err(err).Msg("could not create topics, assuming they exist")
	}
	return k, nil
}

func (k *KafkaPubSub) createTopics() error {
	if len(k.config.Topics) == 0 {
		return nil
	}

	admin, err := kafka.NewAdminClientFromProducer(k.producer)
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	partitions := k.config.Partitions
	if partitions <= 0 {
		partitions = DefaultConfig().Kafka.Partitions
	}

	specs := make([]kafka.TopicSpecification, len(k.config.Topics))
	for i, topic := range k.config.Topics {
		specs[i] = kafka.TopicSpecification{Topic: topic, NumPartitions: partitions, ReplicationFactor: 1}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results, err := admin.CreateTopics(ctx, specs)
	if err != nil {
		return fmt.Errorf("failed to create topics: %w", err)
	}
	for _, r := range results {
		if code := r.Error.Code(); code != kafka.ErrNoError && code != kafka.ErrTopicAlreadyExists {
			k.logger.Warn().Str("topic", r.Topic).Err(r.Error).Msg("failed to create topic")
		}
	}
	return nil
}

// watchProducer logs client-level producer errors. Delivery reports go to
// the per-message channels passed to Produce.
func (k *KafkaPubSub) watchProducer() {
	defer close(k.eventsDone)
	for e := range k.producer.Events() {
		if kerr, ok := e.(kafka.Error); ok {
			k.logger.Error().Err(kerr).Bool("fatal", kerr.IsFatal()).Msg("kafka producer error")
		}
	}
}

func (k *KafkaPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	topic, key, err := channelToTopicAndKey(channel)
	if err != nil {
		return fmt.Errorf("failed to parse channel: %w", err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	report := make(chan kafka.Event, 1)
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(key),
		Value:          data,
		Headers:        []kafka.Header{{Key: headerEventType, Value: []byte(event.Type)}},
	}
	if err := k.producer.Produce(msg, report); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}

	select {
	case e := <-report:
		if m, ok := e.(*kafka.Message); ok && m.TopicPartition.Error != nil {
			return fmt.Errorf("kafka delivery failed: %w", m.TopicPartition.Error)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe consumes the channel's topic and keeps only its room.
func (k *KafkaPubSub) Subscribe(ctx context.Context, channel string) (<-chan *Event, error) {
	topic, roomKey, err := channelToTopicAndKey(channel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse channel: %w", err)
	}
	return k.subscribe(ctx, channel, topic, roomKey)
}

// SubscribePattern consumes every room on the pattern's topic.
func (k *KafkaPubSub) SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error) {
	topic, err := patternToTopic(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pattern: %w", err)
	}
	return k.subscribe(ctx, pattern, topic, "")
}

func (k *KafkaPubSub) subscribe(ctx context.Context, subKey, topic, roomKey string) (<-chan *Event, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if existing, ok := k.subs[subKey]; ok {
		delete(k.subs, subKey)
		existing.stop()
	}

	// Each instance starts at the live end; relay history lives elsewhere,
	// so offsets are never committed.
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  k.config.Brokers,
		"group.id":           consumerGroup(k.config.GroupID, subKey, roomKey != ""),
		"auto.offset.reset":  "latest",
		"enable.auto.commit": false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}
	if err := c.Subscribe(topic, nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &kafkaSubscription{consumer: c, cancel: cancel, done: make(chan struct{})}
	k.subs[subKey] = sub

	out := make(chan *Event, k.buffer)
	go k.consume(subCtx, sub, subKey, roomKey, out)
	return out, nil
}

func (k *KafkaPubSub) consume(ctx context.Context, sub *kafkaSubscription, subKey, roomKey string, out chan<- *Event) {
	defer close(sub.done)
	defer close(out)

	l := k.logger.With().Str("subscription", subKey).Logger()
	for ctx.Err() == nil {
		msg, err := sub.consumer.ReadMessage(kafkaReadTimeout)
		if err != nil {
			var kerr kafka.Error
			if errors.As(err, &kerr) {
				if kerr.Code() == kafka.ErrTimedOut {
					continue
				}
				l.Error().Err(kerr).Bool("fatal", kerr.IsFatal()).Msg("kafka consumer error")
				if kerr.IsFatal() {
					return
				}
			}
			continue
		}

		if roomKey != "" && string(msg.Key) != roomKey {
			continue
		}

		var event Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			l.Warn().Err(err).Msg("dropping malformed event")
			continue
		}

		select {
		case out <- &event:
		case <-ctx.Done():
			return
		default:
			l.Warn().Str("room_key", event.RoomKey).Msg("subscriber buffer full, dropping event")
		}
	}
}

// Unsubscribe ends the subscription for a channel or pattern.
func (k *KafkaPubSub) Unsubscribe(ctx context.Context, channel string) error {
	k.mu.Lock()
	sub, ok := k.subs[channel]
	delete(k.subs, channel)
	k.mu.Unlock()

	if !ok {
		return nil
	}
	if err := sub.stop(); err != nil {
		return fmt.Errorf("failed to close consumer: %w", err)
	}
	return nil
}

// Close stops every consumer and flushes the producer.
func (k *KafkaPubSub) Close() error {
	k.mu.Lock()
	subs := k.subs
	k.subs = make(map[string]*kafkaSubscription)
	k.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}

	if remaining := k.producer.Flush(kafkaFlushTimeoutMs); remaining > 0 {
		k.logger.Warn().Int("unflushed", remaining).Msg("closing producer with undelivered events")
	}
	k.producer.Close()
	<-k.eventsDone
	return nil
}
