package nnue

import "github.com/hailam/chessplay/internal/board"

// Accumulator holds the per-perspective hidden-layer values (spec.md §4.D).
type Accumulator struct {
	Values   [2][L1Size]int16
	Computed [2]bool
}

// plyEntry is one stack slot: an accumulator that may not yet be
// materialized, plus the feature delta (from the move that produced this
// ply) needed to materialize it lazily from an ancestor.
type plyEntry struct {
	acc       Accumulator
	ub        *board.UpdateBuffer
	kingMoved [2]bool
}

// AccumulatorStack mirrors the board's own make/unmake history stack,
// one slot per ply, so NNUE accumulator pushes/pops stay trivially in sync
// with board.MakeMove/UnmakeMove (spec.md §4.D "accumulator stack").
type AccumulatorStack struct {
	entries [256]plyEntry
	top     int
	finny   finnyTable
}

// NewAccumulatorStack creates an empty stack; call Reset before first use.
func NewAccumulatorStack() *AccumulatorStack {
	return &AccumulatorStack{}
}

// Reset recomputes the root accumulator from scratch and clears history.
func (s *AccumulatorStack) Reset(b *board.Board) {
	s.top = 0
	s.entries[0] = plyEntry{}
	s.finny = finnyTable{}
}

// Push records the feature delta produced by a move without computing
// anything yet (lazy materialization). kingMoved[c] must be true if color
// c's king changed square on this move (forces a full refresh for that
// perspective instead of an incremental delta apply).
func (s *AccumulatorStack) Push(b *board.Board, ub *board.UpdateBuffer, kingMoved [2]bool) {
	s.top++
	s.entries[s.top] = plyEntry{ub: ub, kingMoved: kingMoved}
}

// Pop discards the top slot.
func (s *AccumulatorStack) Pop() {
	if s.top > 0 {
		s.top--
	}
}

// Materialize returns the fully computed accumulator for the current ply,
// walking back to the nearest ancestor (or finny-table refresh point) and
// replaying buffered deltas forward.
func (s *AccumulatorStack) Materialize(b *board.Board, net *Network) *Accumulator {
	st := b.State()
	cur := &s.entries[s.top]

	for _, c := range [2]board.Color{board.White, board.Black} {
		if cur.acc.Computed[c] {
			continue
		}
		kingSq := st.KingSquare[c]

		idx := s.top
		for idx > 0 && !s.entries[idx].acc.Computed[c] && !s.entries[idx].kingMoved[c] {
			idx--
		}

		var values [L1Size]int16
		if s.entries[idx].acc.Computed[c] {
			values = s.entries[idx].acc.Values[c]
		} else {
			values = s.finny.refresh(st, c, kingSq, net)
			s.entries[idx].acc.Values[c] = values
			s.entries[idx].acc.Computed[c] = true
		}

		for i := idx + 1; i <= s.top; i++ {
			e := &s.entries[i]
			if e.ub == nil {
				continue
			}
			adds, rems, nAdd, nRem, ok := deltaFeatures(e.ub, c, kingSq)
			if !ok {
				// Shouldn't happen: a king move for c would have set
				// kingMoved[c] and stopped the walk above at this index.
				values = s.finny.refresh(st, c, kingSq, net)
			} else {
				for j := 0; j < nRem; j++ {
					sub(&values, &net.L1Weights[rems[j]])
				}
				for j := 0; j < nAdd; j++ {
					add(&values, &net.L1Weights[adds[j]])
				}
			}
			e.acc.Values[c] = values
			e.acc.Computed[c] = true
		}
	}

	return &cur.acc
}

func add(dst *[L1Size]int16, w *[L1Size]int16) {
	for i := range dst {
		dst[i] += w[i]
	}
}

func sub(dst *[L1Size]int16, w *[L1Size]int16) {
	for i := range dst {
		dst[i] -= w[i]
	}
}

// finnyTable caches the last accumulator computed for each (perspective,
// king bucket, mirror) cell along with the piece placement it was computed
// from, so a "full refresh" after a king-bucket change only has to apply
// the handful of pieces that actually differ from the cached placement
// instead of re-summing every feature from the bias (spec.md §4.D "finny
// table acceleration").
type finnyTable struct {
	cells [2][NumKingBuckets][2]finnyCell
}

type finnyCell struct {
	valid  bool
	pieces [2][6]board.Bitboard
	values [L1Size]int16
}

func (f *finnyTable) refresh(st *board.State, perspective board.Color, kingSq board.Square, net *Network) [L1Size]int16 {
	bucket, mirror := kingBucket(kingSq)
	m := 0
	if mirror {
		m = 1
	}
	cell := &f.cells[perspective][bucket][m]

	if !cell.valid {
		values := net.L1Bias
		feats := activeFeatures(st, perspective, kingSq, make([]int, 0, 32))
		for _, idx := range feats {
			add(&values, &net.L1Weights[idx])
		}
		cell.valid = true
		cell.pieces = st.Pieces
		cell.values = values
		return values
	}

	values := cell.values
	for c := board.White; c <= board.Black; c++ {
		for pt := board.Pawn; pt < board.King; pt++ {
			now := st.Pieces[c][pt]
			was := cell.pieces[c][pt]
			removed := was &^ now
			added := now &^ was
			for removed != 0 {
				sq := removed.PopLSB()
				if idx := featureIndex(perspective, kingSq, pt, c, sq); idx >= 0 {
					sub(&values, &net.L1Weights[idx])
				}
			}
			for added != 0 {
				sq := added.PopLSB()
				if idx := featureIndex(perspective, kingSq, pt, c, sq); idx >= 0 {
					add(&values, &net.L1Weights[idx])
				}
			}
		}
	}
	cell.pieces = st.Pieces
	cell.values = values
	return values
}
