package engine

import (
	"sync/atomic"

	"github.com/hailam/chessplay/internal/board"
	"github.com/hailam/chessplay/internal/nnue"
	"github.com/hailam/chessplay/internal/tablebase"
)

// SearchStack holds per-ply state used for continuation history lookups
// and hindsight reduction decisions (spec.md §4.F, §4.G).
type SearchStack struct {
	move       board.Move
	piece      board.Piece
	to         board.Square
	staticEval int
	reduction  int
}

// ThreadData is one Lazy-SMP worker's private state: its own board copy,
// accumulator stack, history tables and per-ply stacks. Every thread shares
// one TranspositionTable and one stop flag; each keeps its own atomic node
// counter (spec.md §4.G "Lazy SMP").
type ThreadData struct {
	id int

	b       *board.Board
	orderer *MoveOrderer
	nnueEval *nnue.Evaluator

	tt        *TranspositionTable
	pawnTable *PawnTable

	nodes    atomic.Uint64
	stopFlag *atomic.Bool

	pv PVTable
	ss [MaxPly]SearchStack

	rootNodes         map[board.Move]uint64
	excludedRootMoves []board.Move

	tbProber     tablebase.Prober
	tbProbeDepth int

	nmpMinPly int
	rootDelta int
}

// NewThreadData creates one Lazy-SMP worker sharing tt with its siblings,
// using the given pawnTable and its own board/evaluator/history state.
func NewThreadData(id int, tt *TranspositionTable, pawnTable *PawnTable, stopFlag *atomic.Bool, nnueEval *nnue.Evaluator) *ThreadData {
	return &ThreadData{
		id:        id,
		orderer:   NewMoveOrderer(),
		tt:        tt,
		pawnTable: pawnTable,
		stopFlag:  stopFlag,
		nnueEval:  nnueEval,
		rootNodes: make(map[board.Move]uint64),
	}
}

func (td *ThreadData) SetTablebase(prober tablebase.Prober, probeDepth int) {
	td.tbProber = prober
	td.tbProbeDepth = probeDepth
	if td.tbProbeDepth < 1 {
		td.tbProbeDepth = 1
	}
}

// Reset prepares td for a new position/search: board copy, accumulator,
// per-search bookkeeping. Position ownership is td's alone from here on.
func (td *ThreadData) Reset(b *board.Board) {
	td.b = b
	td.nodes.Store(0)
	td.orderer.Clear()
	td.nnueEval.Reset(b)
	for k := range td.rootNodes {
		delete(td.rootNodes, k)
	}
}

func (td *ThreadData) SetExcludedMoves(moves []board.Move) {
	td.excludedRootMoves = moves
}

func (td *ThreadData) isExcludedRootMove(m board.Move) bool {
	for _, e := range td.excludedRootMoves {
		if m == e {
			return true
		}
	}
	return false
}

// Nodes returns this thread's node count.
func (td *ThreadData) Nodes() uint64 { return td.nodes.Load() }

// PV returns the principal variation collected at the root of td's last
// completed search.
func (td *ThreadData) PV() []board.Move {
	n := td.pv.length[0]
	if n <= 0 {
		return nil
	}
	pv := make([]board.Move, n)
	copy(pv, td.pv.moves[0][:n])
	return pv
}

// RootNodeFraction returns how many of this search's nodes fell under m's
// subtree, for AdjustForNodeFraction time management (spec.md §4.H).
func (td *ThreadData) RootNodeFraction(m board.Move) (uint64, uint64) {
	return td.rootNodes[m], td.nodes.Load()
}

func (td *ThreadData) stopped() bool { return td.stopFlag.Load() }

// continuationRefs builds the offset-1/2/4 continuation-history references
// for the node at ply (spec.md §4.F).
func (td *ThreadData) continuationRefs(ply int) [3]ContRef {
	var refs [3]ContRef
	offsets := [3]int{1, 2, 4}
	for i, off := range offsets {
		p := ply - off
		if p < 0 {
			continue
		}
		s := &td.ss[p]
		if s.move == board.NoMove {
			continue
		}
		refs[i] = ContRef{Piece: s.piece, To: s.to, Valid: true}
	}
	return refs
}

// makeMove plays m on td's board, pushing the NNUE accumulator and search
// stack bookkeeping in lockstep, and returns whether the move was legal.
func (td *ThreadData) makeMove(m board.Move, ply int) bool {
	st := td.b.State()
	mover := st.PieceAt(m.From())
	kingMoved := [2]bool{}
	if mover.Type() == board.King {
		kingMoved[mover.Color()] = true
	}

	var ub board.UpdateBuffer
	if !td.b.MakeMove(m, &ub) {
		return false
	}
	td.nnueEval.Push(td.b, &ub, kingMoved)
	td.ss[ply].move = m
	td.ss[ply].piece = mover
	td.ss[ply].to = m.To()
	return true
}

func (td *ThreadData) unmakeMove() {
	td.nnueEval.Pop()
	td.b.UnmakeMove()
}

// staticEval computes the NNUE score plus the pawn-structure hint and
// correction-history adjustment for the node at ply (spec.md §4.G step 3).
func (td *ThreadData) staticEval(ply int) int {
	raw := td.nnueEval.Evaluate(td.b)
	st := td.b.State()
	us := st.SideToMove
	phase := gamePhase(st)
	hint := PawnHint(st, td.pawnTable, phase)
	if us == board.Black {
		hint = -hint
	}
	raw += hint
	raw += td.orderer.CorrectionAdjustment(us, st)
	return raw
}

// gamePhase returns a 0..256 blend factor (256 = full middlegame material,
// 0 = bare endgame) from remaining non-pawn material.
func gamePhase(st *board.State) int {
	const (
		knightPhase = 1
		bishopPhase = 1
		rookPhase   = 2
		queenPhase  = 4
		totalPhase  = knightPhase*4 + bishopPhase*4 + rookPhase*4 + queenPhase*2
	)
	phase := 0
	for c := board.White; c <= board.Black; c++ {
		phase += st.Pieces[c][board.Knight].PopCount() * knightPhase
		phase += st.Pieces[c][board.Bishop].PopCount() * bishopPhase
		phase += st.Pieces[c][board.Rook].PopCount() * rookPhase
		phase += st.Pieces[c][board.Queen].PopCount() * queenPhase
	}
	if phase > totalPhase {
		phase = totalPhase
	}
	return (phase*256 + totalPhase/2) / totalPhase
}
