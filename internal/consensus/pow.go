package consensus

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/quantachain/quanta/pkg/block"
)

// PoW errors.
var (
	ErrInsufficientWork = errors.New("hash does not meet difficulty target")
	ErrZeroDifficulty   = errors.New("difficulty must be > 0")
	ErrBadDifficulty    = errors.New("block difficulty does not match expected")
)

// PoW implements proof-of-work consensus. Difficulty is expressed as the
// number of required leading zero bits in the (double-hashed) block hash
// and is stored in the block header — the engine itself holds no mutable
// state, all difficulty is derived from the chain and encoded in each
// block.
type PoW struct {
	InitialDifficulty uint32 // Starting difficulty bits (from genesis)
	AdjustInterval    uint64 // Blocks between difficulty adjustments (0 = no adjustment)
	TargetBlockTime   int64  // Target seconds between blocks

	// DifficultyFn is called by Prepare to compute the expected difficulty
	// for a new block. Set by the node operator. If nil, Prepare uses
	// InitialDifficulty.
	DifficultyFn func(height uint64) uint32

	// Threads controls the number of parallel mining goroutines. 0 or 1 =
	// single-threaded. Each goroutine searches a strided partition of the
	// nonce space.
	Threads int
}

// NewPoW creates a new PoW engine.
func NewPoW(difficulty uint32, adjustInterval uint64, targetBlockTime int64) (*PoW, error) {
	if difficulty == 0 {
		return nil, ErrZeroDifficulty
	}
	return &PoW{
		InitialDifficulty: difficulty,
		AdjustInterval:    adjustInterval,
		TargetBlockTime:   targetBlockTime,
	}, nil
}

// ShouldAdjust returns true if difficulty should be recalculated at this height.
func (p *PoW) ShouldAdjust(height uint64) bool {
	return height > 0 && p.AdjustInterval > 0 && height%p.AdjustInterval == 0
}

// VerifyHeader checks that the block header hash meets its stated difficulty.
func (p *PoW) VerifyHeader(header *block.Header) error {
	if header.Difficulty == 0 {
		return ErrZeroDifficulty
	}
	if !header.MeetsDifficulty() {
		return ErrInsufficientWork
	}
	return nil
}

// Prepare sets the block header's difficulty for mining. If DifficultyFn is
// set, it computes the expected difficulty from chain state. Otherwise uses
// InitialDifficulty.
func (p *PoW) Prepare(header *block.Header) error {
	if p.DifficultyFn != nil {
		header.Difficulty = p.DifficultyFn(header.Height)
	} else {
		header.Difficulty = p.InitialDifficulty
	}
	return nil
}

// Seal mines the block by iterating the nonce until the header hash meets
// the difficulty already set on it.
func (p *PoW) Seal(blk *block.Block) error {
	return p.SealWithCancel(context.Background(), blk)
}

// SealWithCancel mines the block with cancellation support. When the
// context is cancelled, mining stops and ctx.Err() is returned. If Threads
// > 1, mining runs in parallel goroutines with strided nonce partitioning,
// keeping the miner preemptible within a bounded iteration window.
func (p *PoW) SealWithCancel(ctx context.Context, blk *block.Block) error {
	if blk == nil || blk.Header == nil {
		return fmt.Errorf("nil block or header")
	}
	if blk.Header.Difficulty == 0 {
		return ErrZeroDifficulty
	}

	threads := p.Threads
	if threads <= 1 {
		return p.sealSingle(ctx, blk)
	}
	return p.sealParallel(ctx, blk, threads)
}

func (p *PoW) sealSingle(ctx context.Context, blk *block.Block) error {
	h := blk.Header
	for nonce := uint64(0); ; nonce++ {
		if nonce&0xFFFF == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		h.Nonce = nonce
		if h.MeetsDifficulty() {
			return nil
		}
		if nonce == ^uint64(0) {
			return fmt.Errorf("nonce space exhausted")
		}
	}
}

func (p *PoW) sealParallel(ctx context.Context, blk *block.Block, threads int) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		nonce uint64
		err   error
	}
	found := make(chan result, 1)

	var wg sync.WaitGroup
	for i := 0; i < threads; i++ {
		wg.Add(1)
		startNonce := uint64(i)
		stride := uint64(threads)
		go func() {
			defer wg.Done()
			h := *blk.Header // each goroutine mutates its own copy's nonce

			for nonce := startNonce; ; nonce += stride {
				if (nonce/stride)&0xFFFF == 0 && nonce > 0 {
					select {
					case <-ctx.Done():
						return
					default:
					}
				}

				h.Nonce = nonce
				if h.MeetsDifficulty() {
					select {
					case found <- result{nonce: nonce}:
					default:
					}
					cancel()
					return
				}

				if nonce > ^uint64(0)-stride {
					select {
					case found <- result{err: fmt.Errorf("nonce space exhausted")}:
					default:
					}
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(found)
	}()

	select {
	case r, ok := <-found:
		if !ok {
			return fmt.Errorf("nonce space exhausted")
		}
		if r.err != nil {
			return r.err
		}
		blk.Header.Nonce = r.nonce
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExpectedDifficulty computes the correct difficulty for a block at the
// given height. prevDifficulty is the difficulty of the block at
// height-1 (0 before any block has been mined). getTimestamp retrieves a
// block's timestamp by height for the retarget calculation.
func (p *PoW) ExpectedDifficulty(height uint64, prevDifficulty uint32, getTimestamp func(uint64) (int64, error)) uint32 {
	if height == 0 || prevDifficulty == 0 {
		return p.InitialDifficulty
	}
	if !p.ShouldAdjust(height) {
		return prevDifficulty
	}

	endTS, err := getTimestamp(height - 1)
	if err != nil {
		return prevDifficulty
	}
	startTS, err := getTimestamp(height - p.AdjustInterval)
	if err != nil {
		return prevDifficulty
	}

	actual := endTS - startTS
	expected := int64(p.AdjustInterval) * p.TargetBlockTime
	return CalcNextDifficulty(prevDifficulty, actual, expected)
}

// VerifyDifficulty checks that a block header's stated difficulty matches
// the expected difficulty computed from chain history.
func (p *PoW) VerifyDifficulty(header *block.Header, prevDifficulty uint32, getTimestamp func(uint64) (int64, error)) error {
	expected := p.ExpectedDifficulty(header.Height, prevDifficulty, getTimestamp)
	if header.Difficulty != expected {
		return fmt.Errorf("%w: height %d has difficulty %d, want %d",
			ErrBadDifficulty, header.Height, header.Difficulty, expected)
	}
	return nil
}

// CalcNextDifficulty computes new_difficulty = old*expected/actual, clamped
// to [old/2, old*2] and never below 1, per the retarget rule: every
// adjustment interval, compare the elapsed wall-clock time against the
// expected elapsed time and scale difficulty proportionally.
func CalcNextDifficulty(oldDifficulty uint32, actual, expected int64) uint32 {
	if actual <= 0 {
		actual = 1
	}
	if expected <= 0 {
		expected = 1
	}

	raw := int64(oldDifficulty) * expected / actual

	minD := int64(oldDifficulty) / 2
	maxD := int64(oldDifficulty) * 2
	if raw < minD {
		raw = minD
	}
	if raw > maxD {
		raw = maxD
	}
	if raw < 1 {
		raw = 1
	}
	if raw > int64(^uint32(0)) {
		raw = int64(^uint32(0))
	}
	return uint32(raw)
}
