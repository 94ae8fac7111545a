package redisstream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StreamClient publishes to and inspects Redis Streams.
type StreamClient struct {
	client *redis.Client
}

func NewStreamClient(client *redis.Client) *StreamClient {
	return &StreamClient{client: client}
}

// Publish appends msg to stream and returns the server-assigned entry id.
func (c *StreamClient) Publish(ctx context.Context, stream string, msg interface{}) (string, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}

	id, err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return id, nil
}

// PublishWithID appends msg with a caller-chosen id, so a republish of
// the same command after a crash lands on the same stream entry
// instead of being applied twice.
func (c *StreamClient) PublishWithID(ctx context.Context, stream, id string, msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	_, err = c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		ID:     id,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd: %w", err)
	}

	return nil
}

type Message struct {
	ID     string
	Stream string
	Data   []byte
}

type MessageHandler func(ctx context.Context, msg *Message) error

type ConsumerOptions struct {
	BatchSize            int
	BlockTime            time.Duration
	MaxRetries           int
	RetryBackoff         time.Duration
	ClaimMinIdle         time.Duration
	PendingCheckInterval time.Duration
}

var DefaultConsumerOptions = ConsumerOptions{
	BatchSize:            10,
	BlockTime:            5 * time.Second,
	MaxRetries:           3,
	RetryBackoff:         time.Second,
	ClaimMinIdle:         30 * time.Second,
	PendingCheckInterval: 30 * time.Second,
}

// withDefaults fills in any zero-valued field from DefaultConsumerOptions,
// so a caller tuning one knob doesn't silently disable the others.
func (o ConsumerOptions) withDefaults() ConsumerOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultConsumerOptions.BatchSize
	}
	if o.BlockTime <= 0 {
		o.BlockTime = DefaultConsumerOptions.BlockTime
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultConsumerOptions.MaxRetries
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = DefaultConsumerOptions.RetryBackoff
	}
	if o.ClaimMinIdle <= 0 {
		o.ClaimMinIdle = DefaultConsumerOptions.ClaimMinIdle
	}
	if o.PendingCheckInterval <= 0 {
		o.PendingCheckInterval = DefaultConsumerOptions.PendingCheckInterval
	}
	return o
}

// Consumer reads commands (or events) from one or more streams under a
// consumer group, claiming and retrying stuck deliveries and routing
// anything past MaxRetries to a per-stream dead-letter stream.
type Consumer struct {
	client   *StreamClient
	group    string
	consumer string
	streams  []string
	handler  MessageHandler
	opts     ConsumerOptions

	// OnError reports errors from background bookkeeping (DLQ writes,
	// ack failures) that the caller can't synchronously observe.
	OnError func(err error)
}

func (c *Consumer) reportError(err error) {
	if err == nil || c.OnError == nil {
		return
	}
	c.OnError(err)
}

func NewConsumer(client *StreamClient, group, consumer string, streams []string, handler MessageHandler, opts *ConsumerOptions) *Consumer {
	resolved := DefaultConsumerOptions
	if opts != nil {
		resolved = opts.withDefaults()
	}
	return &Consumer{
		client:   client,
		group:    group,
		consumer: consumer,
		streams:  streams,
		handler:  handler,
		opts:     resolved,
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	for _, stream := range c.streams {
		err := c.client.client.XGroupCreateMkStream(ctx, stream, c.group, "0").Err()
		if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
			return fmt.Errorf("create group: %w", err)
		}
	}

	if err := c.processPending(ctx); err != nil {
		return fmt.Errorf("process pending: %w", err)
	}

	return c.consume(ctx)
}

func (c *Consumer) processPending(ctx context.Context) error {
	for _, stream := range c.streams {
		for {
			pending, err := c.client.client.XPendingExt(ctx, &redis.XPendingExtArgs{
				Stream: stream,
				Group:  c.group,
				Start:  "-",
				End:    "+",
				Count:  int64(c.opts.BatchSize),
			}).Result()
			if err != nil {
				return fmt.Errorf("xpending: %w", err)
			}

			if len(pending) == 0 {
				break
			}

			ids := make([]string, 0, len(pending))
			dlqIDs := make(map[string]int64)
			for _, p := range pending {
				if p.Idle >= c.opts.ClaimMinIdle {
					ids = append(ids, p.ID)
					if c.opts.MaxRetries > 0 && p.RetryCount > int64(c.opts.MaxRetries) {
						dlqIDs[p.ID] = p.RetryCount
					}
				}
			}

			if len(ids) == 0 {
				break
			}

			messages, err := c.client.client.XClaim(ctx, &redis.XClaimArgs{
				Stream:   stream,
				Group:    c.group,
				Consumer: c.consumer,
				MinIdle:  c.opts.ClaimMinIdle,
				Messages: ids,
			}).Result()
			if err != nil {
				return fmt.Errorf("xclaim: %w", err)
			}

			for _, m := range messages {
				if retryCount, toDLQ := dlqIDs[m.ID]; toDLQ {
					if err := c.sendToDLQ(ctx, stream, &m, fmt.Sprintf("max retries exceeded: %d", retryCount)); err != nil {
						c.reportError(fmt.Errorf("send to dlq: %w", err))
						continue
					}
					c.reportError(c.client.client.XAck(ctx, stream, c.group, m.ID).Err())
					continue
				}

				c.reportError(c.processMessage(ctx, stream, m))
			}
		}
	}
	return nil
}

func (c *Consumer) consume(ctx context.Context) error {
	args := make([]string, 0, len(c.streams)*2)
	for _, s := range c.streams {
		args = append(args, s)
	}
	for range c.streams {
		args = append(args, ">")
	}

	pendingTicker := time.NewTicker(c.opts.PendingCheckInterval)
	defer pendingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pendingTicker.C:
			if err := c.processPending(ctx); err != nil && ctx.Err() == nil {
				c.reportError(fmt.Errorf("process pending: %w", err))
			}
		default:
		}

		results, err := c.client.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.consumer,
			Streams:  args,
			Count:    int64(c.opts.BatchSize),
			Block:    c.opts.BlockTime,
		}).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return fmt.Errorf("xreadgroup: %w", err)
		}

		for _, result := range results {
			for _, m := range result.Messages {
				c.reportError(c.processMessage(ctx, result.Stream, m))
			}
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, stream string, m redis.XMessage) error {
	data, ok := m.Values["data"].(string)
	if !ok {
		return c.client.client.XAck(ctx, stream, c.group, m.ID).Err()
	}

	msg := &Message{
		ID:     m.ID,
		Stream: stream,
		Data:   []byte(data),
	}

	if err := c.handler(ctx, msg); err != nil {
		if c.opts.MaxRetries > 0 {
			pending, pErr := c.client.client.XPendingExt(ctx, &redis.XPendingExtArgs{
				Stream: stream,
				Group:  c.group,
				Start:  m.ID,
				End:    m.ID,
				Count:  1,
			}).Result()
			if pErr == nil && len(pending) == 1 && pending[0].RetryCount > int64(c.opts.MaxRetries) {
				if dlqErr := c.sendToDLQ(ctx, stream, &m, err.Error()); dlqErr == nil {
					return c.client.client.XAck(ctx, stream, c.group, m.ID).Err()
				}
			}
		}
		return err
	}

	return c.client.client.XAck(ctx, stream, c.group, m.ID).Err()
}

func (c *Consumer) sendToDLQ(ctx context.Context, stream string, m *redis.XMessage, reason string) error {
	dlqStream := stream + ":dlq"
	values := map[string]interface{}{
		"stream":   stream,
		"msgId":    m.ID,
		"reason":   reason,
		"data":     m.Values["data"],
		"tsMs":     time.Now().UnixMilli(),
		"group":    c.group,
		"consumer": c.consumer,
	}
	_, err := c.client.client.XAdd(ctx, &redis.XAddArgs{
		Stream: dlqStream,
		Values: values,
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd dlq: %w", err)
	}
	return nil
}

func (c *Consumer) Ack(ctx context.Context, stream, id string) error {
	return c.client.client.XAck(ctx, stream, c.group, id).Err()
}

type StreamInfo struct {
	Length         int64
	FirstEntry     string
	LastEntry      string
	ConsumerGroups int64
}

func (c *StreamClient) Info(ctx context.Context, stream string) (*StreamInfo, error) {
	info, err := c.client.XInfoStream(ctx, stream).Result()
	if err != nil {
		return nil, err
	}

	return &StreamInfo{
		Length:         info.Length,
		FirstEntry:     info.FirstEntry.ID,
		LastEntry:      info.LastEntry.ID,
		ConsumerGroups: int64(info.Groups),
	}, nil
}

func (c *StreamClient) Trim(ctx context.Context, stream string, maxLen int64) error {
	return c.client.XTrimMaxLen(ctx, stream, maxLen).Err()
}
