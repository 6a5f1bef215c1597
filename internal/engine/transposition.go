package engine

import (
	"math/bits"
	"sync/atomic"
	"unsafe"

	"github.com/hailam/chessplay/internal/board"
)

// TTFlag (called "bound" in spec.md §4.E) indicates what kind of score an
// entry stores.
type TTFlag uint8

const (
	TTExact TTFlag = iota
	TTLowerBound
	TTUpperBound
)

// TTEntry is one lock-free slot: a 16-bit key fragment (to filter the rare
// torn read against a colliding index) plus a single packed 64-bit data
// word holding move, score, static eval, depth, age, pv flag and bound —
// laid out so every field fits one atomic word and reads/writes never need
// a lock on the search hot path (spec.md §4.E). Go has no 16-bit atomic, so
// the key fragment widens to 32 bits — the nearest portable equivalent of
// the packed 10-byte entry the spec describes.
type TTEntry struct {
	keyFrag atomic.Uint32
	data    atomic.Uint64
}

// data word bit layout (low to high): move:16 score:16 staticEval:16
// depth:8 age:5 pv:1 bound:2
const (
	dataMoveShift  = 0
	dataScoreShift = 16
	dataEvalShift  = 32
	dataDepthShift = 48
	dataAgeShift   = 56
	dataPVShift    = 61
	dataBoundShift = 62
)

func packData(move board.Move, score, staticEval int16, depth uint8, age uint8, pv bool, bound TTFlag) uint64 {
	var pvBit uint64
	if pv {
		pvBit = 1
	}
	return uint64(move)<<dataMoveShift |
		uint64(uint16(score))<<dataScoreShift |
		uint64(uint16(staticEval))<<dataEvalShift |
		uint64(depth)<<dataDepthShift |
		uint64(age&0x1F)<<dataAgeShift |
		pvBit<<dataPVShift |
		uint64(bound&0x3)<<dataBoundShift
}

func unpackMove(d uint64) board.Move   { return board.Move(d >> dataMoveShift) }
func unpackScore(d uint64) int16       { return int16(d >> dataScoreShift) }
func unpackStaticEval(d uint64) int16  { return int16(d >> dataEvalShift) }
func unpackDepth(d uint64) uint8       { return uint8(d >> dataDepthShift) }
func unpackAge(d uint64) uint8         { return uint8(d>>dataAgeShift) & 0x1F }
func unpackPV(d uint64) bool           { return (d>>dataPVShift)&1 != 0 }
func unpackBound(d uint64) TTFlag      { return TTFlag((d >> dataBoundShift) & 0x3) }

// Probed is the materialized, non-atomic view of a TTEntry returned by Probe.
type Probed struct {
	Move       board.Move
	Score      int16
	StaticEval int16
	Depth      uint8
	Age        uint8
	PV         bool
	Bound      TTFlag
}

// TTCluster groups entries sharing an index; probing tries every entry in
// the cluster before concluding a miss, reducing collisions from the
// bucketed index (spec.md §4.E).
const ttClusterEntries = 3

type TTCluster struct {
	entries [ttClusterEntries]TTEntry
	_       [8]byte // pad cluster towards a cache-line-friendly size
}

// TranspositionTable is a fixed-size, lock-free, age-replacement hash table
// shared by every Lazy-SMP worker.
type TranspositionTable struct {
	clusters []TTCluster
	mask     uint64
	age      uint32

	hits   atomic.Uint64
	probes atomic.Uint64
}

// NewTranspositionTable allocates a table sized in MB, rounded down to a
// power-of-two cluster count.
func NewTranspositionTable(sizeMB int) *TranspositionTable {
	clusterSize := uint64(unsafe.Sizeof(TTCluster{})) // bytes per cluster
	numClusters := (uint64(sizeMB) * 1024 * 1024) / clusterSize
	numClusters = roundDownToPowerOf2(numClusters)
	if numClusters == 0 {
		numClusters = 1
	}
	return &TranspositionTable{
		clusters: make([]TTCluster, numClusters),
		mask:     numClusters - 1,
	}
}

func roundDownToPowerOf2(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return (n + 1) >> 1
}

// clusterIndex uses fixed-point multiplication (key*len)>>64 instead of a
// mask or modulo, so it works for any table length (viridithas's
// `mul_hi64`-style indexing). The mask field is not used for indexing.
func (tt *TranspositionTable) clusterIndex(key uint64) uint64 {
	hi, _ := bits.Mul64(key, uint64(len(tt.clusters)))
	return hi
}

// Prefetch touches the cache line for key's cluster ahead of the real
// probe. Go exposes no portable hardware prefetch intrinsic without
// per-architecture assembly, so this issues a plain load — the compiler
// cannot reorder it past the real probe, and on most platforms the load
// itself pulls the line into cache, which is the practical effect a
// prefetch hint would have bought here.
func (tt *TranspositionTable) Prefetch(key uint64) {
	idx := tt.clusterIndex(key)
	_ = tt.clusters[idx].entries[0].keyFrag.Load()
}

// Probe looks up key's cluster and returns the best-matching entry (the
// deepest exact-key match) if any slot's key fragment agrees.
func (tt *TranspositionTable) Probe(key uint64) (Probed, bool) {
	tt.probes.Add(1)
	idx := tt.clusterIndex(key)
	frag := uint32(key >> 48)

	cluster := &tt.clusters[idx]
	found := false
	var best Probed
	for i := range cluster.entries {
		e := &cluster.entries[i]
		if e.keyFrag.Load() != frag {
			continue
		}
		d := e.data.Load()
		p := Probed{
			Move:       unpackMove(d),
			Score:      unpackScore(d),
			StaticEval: unpackStaticEval(d),
			Depth:      unpackDepth(d),
			Age:        unpackAge(d),
			PV:         unpackPV(d),
			Bound:      unpackBound(d),
		}
		if !found || p.Depth > best.Depth {
			best, found = p, true
		}
	}
	if found {
		tt.hits.Add(1)
	}
	return best, found
}

// flagBonus ranks bound types for replacement priority: an exact score is
// worth more to keep around than a bound, and a lower bound more than an
// upper bound (spec.md §4.E).
func flagBonus(bound TTFlag) int64 {
	switch bound {
	case TTExact:
		return 3
	case TTLowerBound:
		return 2
	default:
		return 1
	}
}

// Store writes an entry into key's cluster. It first picks the lowest
// (age, depth) priority slot as the candidate victim, then only actually
// overwrites it if the new entry is for the same key, upgrades a
// non-exact bound to exact, or scores at least 2/3 of the victim's own
// priority — so a shallow, low-value store can't evict a deep exact entry
// just for having landed on the oldest slot in its cluster (spec.md §4.E).
func (tt *TranspositionTable) Store(key uint64, depth int, score, staticEval int, bound TTFlag, move board.Move, pv bool) {
	idx := tt.clusterIndex(key)
	frag := uint32(key >> 48)
	cluster := &tt.clusters[idx]

	victim := 0
	sameKey := false
	var victimPriority int64 = 1 << 62
	for i := range cluster.entries {
		e := &cluster.entries[i]
		if e.keyFrag.Load() == frag {
			victim, sameKey = i, true
			break
		}
		d := e.data.Load()
		age := unpackAge(d)
		ageDelta := int64((tt.age - uint32(age)) & 0x1F)
		priority := int64(unpackDepth(d)) - ageDelta*8
		if priority < victimPriority {
			victim, victimPriority = i, priority
		}
	}

	e := &cluster.entries[victim]
	vd := e.data.Load()
	vBound := unpackBound(vd)

	// Keep an existing move when the new store has none (e.g. a fail-low
	// leaf with no best move), so the TT move stays usable for ordering.
	if move == board.NoMove && sameKey {
		move = unpackMove(vd)
	}

	if !sameKey {
		ageDelta := int64((tt.age - uint32(unpackAge(vd))) & 0x1F)
		insertPriority := int64(depth) + flagBonus(bound) + (ageDelta*ageDelta)/4
		if pv {
			insertPriority++
		}
		recordPriority := int64(unpackDepth(vd)) + flagBonus(vBound)
		upgradesToExact := bound == TTExact && vBound != TTExact
		if !upgradesToExact && insertPriority*3 < recordPriority*2 {
			return
		}
	}

	d := packData(move, int16(score), int16(staticEval), uint8(depth), uint8(tt.age), pv, bound)
	e.data.Store(d)
	e.keyFrag.Store(frag)
}

// NewSearch bumps the age generation, making every existing entry a lower
// replacement priority than anything stored from here on.
func (tt *TranspositionTable) NewSearch() {
	tt.age = (tt.age + 1) & 0x1F
}

// Clear zeroes every slot and resets statistics.
func (tt *TranspositionTable) Clear() {
	for i := range tt.clusters {
		for j := range tt.clusters[i].entries {
			tt.clusters[i].entries[j].keyFrag.Store(0)
			tt.clusters[i].entries[j].data.Store(0)
		}
	}
	tt.age = 0
	tt.hits.Store(0)
	tt.probes.Store(0)
}

// Hashfull samples the first 1000 clusters and reports parts-per-thousand
// occupied by the current search generation (the UCI `info hashfull` field).
func (tt *TranspositionTable) Hashfull() int {
	sampleSize := 1000
	if sampleSize > len(tt.clusters) {
		sampleSize = len(tt.clusters)
	}
	if sampleSize == 0 {
		return 0
	}
	used := 0
	for i := 0; i < sampleSize; i++ {
		for j := range tt.clusters[i].entries {
			d := tt.clusters[i].entries[j].data.Load()
			if unpackDepth(d) > 0 && uint32(unpackAge(d)) == tt.age {
				used++
			}
		}
	}
	return (used * 1000) / (sampleSize * ttClusterEntries)
}

// HitRate returns the lifetime probe hit rate as a percentage.
func (tt *TranspositionTable) HitRate() float64 {
	probes := tt.probes.Load()
	if probes == 0 {
		return 0
	}
	return float64(tt.hits.Load()) / float64(probes) * 100
}

// Size returns the number of clusters in the table.
func (tt *TranspositionTable) Size() uint64 { return uint64(len(tt.clusters)) }

// AdjustScoreFromTT converts a stored node-relative mate score (distance
// from the node that stored it) back into one relative to the search root,
// given the probing node's ply.
func AdjustScoreFromTT(score int, ply int) int {
	if score > MateScore-MaxPly {
		return score - ply
	}
	if score < -MateScore+MaxPly {
		return score + ply
	}
	return score
}

// AdjustScoreToTT converts a root-relative mate score into one relative to
// the node at ply (distance from that node), for storage.
func AdjustScoreToTT(score int, ply int) int {
	if score > MateScore-MaxPly {
		return score + ply
	}
	if score < -MateScore+MaxPly {
		return score - ply
	}
	return score
}
