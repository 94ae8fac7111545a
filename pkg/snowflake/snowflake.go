// Package snowflake mints distributed, roughly time-sortable ids for
// orders that arrive at the host boundary without a client-supplied id.
package snowflake

import (
	"errors"
	"strconv"
	"sync"
	"time"
)

const (
	epoch int64 = 1704067200000 // 2024-01-01 00:00:00 UTC

	workerIDBits = 10
	sequenceBits = 12

	maxWorkerID = -1 ^ (-1 << workerIDBits)
	maxSequence = -1 ^ (-1 << sequenceBits)

	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

var (
	ErrInvalidWorkerID = errors.New("worker ID must be between 0 and 1023")
	ErrClockMovedBack  = errors.New("clock moved backwards")
)

// Generator produces monotonically increasing 64-bit ids for one worker.
type Generator struct {
	mu       sync.Mutex
	workerID int64
	sequence int64
	lastTime int64
}

func New(workerID int64) (*Generator, error) {
	if workerID < 0 || workerID > maxWorkerID {
		return nil, ErrInvalidWorkerID
	}
	return &Generator{workerID: workerID}, nil
}

func (g *Generator) Generate() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UnixMilli()

	if now < g.lastTime {
		return 0, ErrClockMovedBack
	}

	if now == g.lastTime {
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			for now <= g.lastTime {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		g.sequence = 0
	}

	g.lastTime = now

	id := ((now - epoch) << timestampShift) |
		(g.workerID << workerIDShift) |
		g.sequence

	return id, nil
}

func (g *Generator) MustGenerate() int64 {
	id, err := g.Generate()
	if err != nil {
		panic(err)
	}
	return id
}

// GenerateString returns Generate's id formatted as a base-10 string, the
// shape spec.md's opaque order/user ids take.
func (g *Generator) GenerateString() (string, error) {
	id, err := g.Generate()
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

func Parse(id int64) (timestamp int64, workerID int64, sequence int64) {
	timestamp = (id >> timestampShift) + epoch
	workerID = (id >> workerIDShift) & maxWorkerID
	sequence = id & maxSequence
	return
}

func Time(id int64) time.Time {
	ts, _, _ := Parse(id)
	return time.UnixMilli(ts)
}

var defaultGenerator *Generator

func Init(workerID int64) error {
	g, err := New(workerID)
	if err != nil {
		return err
	}
	defaultGenerator = g
	return nil
}

func NextID() (int64, error) {
	if defaultGenerator == nil {
		return 0, errors.New("snowflake not initialized")
	}
	return defaultGenerator.Generate()
}

func MustNextID() int64 {
	id, err := NextID()
	if err != nil {
		panic(err)
	}
	return id
}

func NextIDString() (string, error) {
	if defaultGenerator == nil {
		return "", errors.New("snowflake not initialized")
	}
	return defaultGenerator.GenerateString()
}
