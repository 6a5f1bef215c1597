package engine

import "github.com/hailam/chessplay/internal/board"

// mvvLva ranks victim/attacker pairs for capture ordering before history is
// blended in (most valuable victim, least valuable attacker first).
var mvvLva = [6][6]int{
	/*         P   N   B   R   Q   K  (attacker) */
	/* P */ {15, 14, 14, 13, 12, 11},
	/* N */ {25, 24, 24, 23, 22, 21},
	/* B */ {35, 34, 34, 33, 32, 31},
	/* R */ {45, 44, 44, 43, 42, 41},
	/* Q */ {55, 54, 54, 53, 52, 51},
	/* K */ {0, 0, 0, 0, 0, 0},
}

// pickerStage enumerates the staged move order from spec.md §4.G: TT move
// -> good captures -> killer -> counter-move -> quiets -> bad captures.
type pickerStage int

const (
	stageTT pickerStage = iota
	stageGenCaptures
	stageGoodCaptures
	stageKiller
	stageCounter
	stageGenQuiets
	stageQuiets
	stageBadCaptures
	stageDone
)

// MovePicker lazily materializes and orders moves for one search node,
// generating captures only once needed and quiets only after those are
// exhausted (spec.md §4.G "staged move picker").
type MovePicker struct {
	b       *board.Board
	orderer *MoveOrderer
	ply     int
	prevs   [3]ContRef

	ttMove      board.Move
	killer      board.Move
	counterMove board.Move

	stage pickerStage

	captures    board.ScoredMoveList
	quiets      board.ScoredMoveList
	badCaptures board.ScoredMoveList
	capIdx      int
	quietIdx    int
	badIdx      int

	skipQuiets bool
}

// NewMovePicker sets up a staged picker for the node at ply. prevs supplies
// the continuation-history references at offsets 1, 2 and 4 plies back
// (invalid entries simply don't contribute).
func NewMovePicker(b *board.Board, orderer *MoveOrderer, ply int, ttMove board.Move, prevs [3]ContRef) *MovePicker {
	return &MovePicker{
		b:           b,
		orderer:     orderer,
		ply:         ply,
		prevs:       prevs,
		ttMove:      ttMove,
		killer:      orderer.Killer(ply),
		counterMove: counterFromPrev(orderer, prevs),
		stage:       stageTT,
	}
}

// SkipQuiets instructs the picker to stop yielding quiet moves once the
// capture stages are exhausted (used by quiescence search).
func (mp *MovePicker) SkipQuiets() { mp.skipQuiets = true }

func counterFromPrev(orderer *MoveOrderer, prevs [3]ContRef) board.Move {
	if !prevs[0].Valid {
		return board.NoMove
	}
	return orderer.CounterMove(prevs[0].Piece, prevs[0].To)
}

// Next returns the next move in staged order, or (NoMove, false) when
// exhausted.
func (mp *MovePicker) Next() (board.Move, bool) {
	for {
		switch mp.stage {
		case stageTT:
			mp.stage = stageGenCaptures
			if mp.ttMove != board.NoMove && mp.b.IsPseudoLegal(mp.ttMove) && mp.b.IsLegal(mp.ttMove) {
				return mp.ttMove, true
			}

		case stageGenCaptures:
			mp.b.GenerateMoves(board.GenCapturesAndPromotions, &mp.captures)
			mp.scoreCaptures()
			mp.stage = stageGoodCaptures

		case stageGoodCaptures:
			for mp.capIdx < mp.captures.Len() {
				i := mp.capIdx
				m := mp.captures.PickBest(i)
				mp.capIdx++
				if m == mp.ttMove || !mp.b.IsLegal(m) {
					continue
				}
				if mp.captures.Score(i) < 0 {
					mp.badCaptures.AddScored(m, mp.captures.Score(i))
					continue
				}
				return m, true
			}
			mp.stage = stageKiller

		case stageKiller:
			mp.stage = stageCounter
			if mp.skipQuiets {
				continue
			}
			if mp.killer != board.NoMove && mp.killer != mp.ttMove &&
				mp.b.IsPseudoLegal(mp.killer) && mp.killer.IsQuiet() && mp.b.IsLegal(mp.killer) {
				return mp.killer, true
			}

		case stageCounter:
			mp.stage = stageGenQuiets
			if mp.skipQuiets {
				continue
			}
			if mp.counterMove != board.NoMove && mp.counterMove != mp.ttMove &&
				mp.counterMove != mp.killer && mp.b.IsPseudoLegal(mp.counterMove) &&
				mp.counterMove.IsQuiet() && mp.b.IsLegal(mp.counterMove) {
				return mp.counterMove, true
			}

		case stageGenQuiets:
			mp.stage = stageBadCaptures
			if mp.skipQuiets {
				continue
			}
			mp.b.GenerateMoves(board.GenQuiets, &mp.quiets)
			mp.scoreQuiets()
			mp.stage = stageQuiets

		case stageQuiets:
			for mp.quietIdx < mp.quiets.Len() {
				i := mp.quietIdx
				m := mp.quiets.PickBest(i)
				mp.quietIdx++
				if m == mp.ttMove || m == mp.killer || m == mp.counterMove || !mp.b.IsLegal(m) {
					continue
				}
				return m, true
			}
			mp.stage = stageBadCaptures

		case stageBadCaptures:
			for mp.badIdx < mp.badCaptures.Len() {
				i := mp.badIdx
				mp.badIdx++
				m := mp.badCaptures.Get(i)
				if m == mp.ttMove {
					continue
				}
				return m, true
			}
			mp.stage = stageDone

		case stageDone:
			return board.NoMove, false
		}
	}
}

func (mp *MovePicker) scoreCaptures() {
	st := mp.b.State()
	for i := 0; i < mp.captures.Len(); i++ {
		m := mp.captures.Get(i)
		attacker := st.PieceAt(m.From())
		var victim board.PieceType
		if m.IsEnPassant() {
			victim = board.Pawn
		} else {
			victim = st.PieceAt(m.To()).Type()
		}
		score := 0
		if victim != board.NoPieceType {
			score = mvvLva[victim][attacker.Type()] * 10000
		}
		score += mp.orderer.TacticalHistoryScore(victim, attacker, m.To())
		if m.IsPromotion() {
			score += board.PieceValue[m.Promotion()] * 8
		}
		if !staticExchangeEval(mp.b, m, 0) {
			score -= 1_000_000
		}
		mp.captures.SetScore(i, int32(score))
	}
}

func (mp *MovePicker) scoreQuiets() {
	st := mp.b.State()
	for i := 0; i < mp.quiets.Len(); i++ {
		m := mp.quiets.Get(i)
		piece := st.PieceAt(m.From())
		score := mp.orderer.MainHistoryScore(st, m, piece)
		score += mp.orderer.ContinuationScore(mp.prevs, piece, m.To())
		mp.quiets.SetScore(i, int32(score))
	}
}
