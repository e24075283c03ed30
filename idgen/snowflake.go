package idgen

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"
)

const (
	WorkerBits   = 10
	SequenceBits = 12
	TimeBits     = 41

	MaxWorkerID = 1<<WorkerBits - 1
	maxSequence = 1<<SequenceBits - 1
	maxElapsed  = 1<<TimeBits - 1

	// DefaultEpoch is 2010-11-04T01:42:54.657Z in ms.
	DefaultEpoch int64 = 1288834974657
)

var (
	ErrClockRegression = errors.New("idgen: clock moved backwards")
	ErrInvalidWorkerID = errors.New("idgen: worker id out of range")
	ErrEpochExhausted  = errors.New("idgen: timestamp no longer fits in 41 bits")
)

// Snowflake issues 64-bit ids laid out as 41 bits of milliseconds since the
// epoch, 10 bits of worker id and 12 bits of sequence. Ids from one
// generator are strictly increasing.
type Snowflake struct {
	mu       sync.Mutex
	epoch    int64
	workerID int64
	lastMs   int64
	sequence int64
	now      func() time.Time
}

type Option func(*Snowflake)

func WithEpoch(ms int64) Option {
	return func(s *Snowflake) {
		s.epoch = ms
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Snowflake) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSnowflake(workerID int64, opts ...Option) (*Snowflake, error) {
	if workerID < 0 || workerID > MaxWorkerID {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWorkerID, workerID)
	}
	s := &Snowflake{
		epoch:    DefaultEpoch,
		workerID: workerID,
		lastMs:   -1,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Snowflake) WorkerID() int64 {
	return s.workerID
}

func (s *Snowflake) elapsed() int64 {
	return s.now().UnixMilli() - s.epoch
}

func (s *Snowflake) NextInt64() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms := s.elapsed()
	if ms < s.lastMs {
		return 0, fmt.Errorf("%w: by %dms", ErrClockRegression, s.lastMs-ms)
	}
	if ms == s.lastMs {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			// sequence exhausted for this millisecond
			for ms <= s.lastMs {
				ms = s.elapsed()
			}
		}
	} else {
		s.sequence = 0
	}
	if ms > maxElapsed || ms < 0 {
		return 0, ErrEpochExhausted
	}
	s.lastMs = ms
	return ms<<(WorkerBits+SequenceBits) | s.workerID<<SequenceBits | s.sequence, nil
}

// NextID returns the next id in decimal.
func (s *Snowflake) NextID() (string, error) {
	id, err := s.NextInt64()
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

type Parts struct {
	Time     time.Time
	WorkerID int64
	Sequence int64
}

// Decompose splits an id issued with this generator's epoch.
func (s *Snowflake) Decompose(id int64) Parts {
	return Parts{
		Time:     time.UnixMilli(id>>(WorkerBits+SequenceBits) + s.epoch),
		WorkerID: id >> SequenceBits & MaxWorkerID,
		Sequence: id & maxSequence,
	}
}
