package engine

import (
	"math"

	"github.com/hailam/chessplay/internal/board"
	"github.com/hailam/chessplay/internal/tablebase"
)

// Search-wide score constants.
const (
	Infinity  = 30000
	MateScore = 29000
	MaxPly    = 128

	maxQuiescencePly = 32
)

// PVTable stores the principal variation collected during one search tree
// walk, triangular-array style (spec.md §4.G).
type PVTable struct {
	length [MaxPly]int
	moves  [MaxPly][MaxPly]board.Move
}

// SearchRoot runs one iterative-deepening call at depth within the given
// aspiration window; the best move and PV are read back via td.PV().
func (td *ThreadData) SearchRoot(depth, alpha, beta int) int {
	return td.negamax(depth, 0, alpha, beta, false, board.NoMove)
}

func isMateScore(v int) bool { return v > MateScore-MaxPly || v < -MateScore+MaxPly }

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// lmrTable[depth][moveCount] is the base log-reduction, grounded on the
// teacher's late-move-reduction table (spec.md §4.G "LMR").
var lmrTable [MaxPly][64]int

func init() {
	for d := 1; d < MaxPly; d++ {
		for mc := 1; mc < 64; mc++ {
			r := 0.35 + math.Log(float64(d))*math.Log(float64(mc))*0.45
			lmrTable[d][mc] = int(r)
		}
	}
}

func lmpThreshold(depth int, improving bool) int {
	t := 3 + depth*depth
	if !improving {
		t /= 2
	}
	return t
}

func rfpMargin(depth int, improving bool) int {
	m := 80 * depth
	if !improving {
		m += 60
	}
	return m
}

// negamax is the principal variation search: alpha-beta with a null window
// for every move after the first, re-searched at full window on a fail
// high (spec.md §4.G). excludeMove supports singular-extension verification
// by hiding one move from the picker at this node without recursing deeper.
func (td *ThreadData) negamax(depth, ply int, alpha, beta int, cutNode bool, excludeMove board.Move) int {
	pvNode := beta-alpha > 1
	isRoot := ply == 0
	td.pv.length[ply] = ply

	if ShouldCheckUp(td.nodes.Load()) && td.stopped() {
		return 0
	}
	td.nodes.Add(1)

	if !isRoot {
		alpha = max(alpha, -MateScore+ply)
		beta = min(beta, MateScore-ply-1)
		if alpha >= beta {
			return alpha
		}
		if td.b.IsDrawAtNode(ply) || td.b.HasGameCycle(ply) {
			return 0
		}
	}

	if ply >= MaxPly-1 {
		return td.staticEval(ply)
	}

	inCheck := td.b.InCheck()
	if depth <= 0 && !inCheck {
		return td.quiescence(ply, alpha, beta)
	}
	if depth < 1 {
		depth = 1
	}

	key := td.b.Keys().Zobrist
	var ttMove board.Move
	var probed Probed
	var ttScore int
	ttHit := false
	if excludeMove == board.NoMove {
		probed, ttHit = td.tt.Probe(key)
		if ttHit {
			ttMove = probed.Move
			ttScore = AdjustScoreFromTT(int(probed.Score), ply)
			if !pvNode && int(probed.Depth) >= depth {
				switch probed.Bound {
				case TTExact:
					return ttScore
				case TTLowerBound:
					if ttScore >= beta {
						return ttScore
					}
				case TTUpperBound:
					if ttScore <= alpha {
						return ttScore
					}
				}
			}
		}
	}

	us := td.b.SideToMove()

	if !isRoot && td.tbProber != nil && td.tbProber.Available() && depth >= td.tbProbeDepth {
		st := td.b.State()
		if st.AllOccupied.PopCount() <= td.tbProber.MaxPieces() {
			res := td.tbProber.Probe(st)
			if res.Found {
				score := tablebase.WDLToScore(res.WDL, ply)
				var bound TTFlag
				switch {
				case res.WDL == tablebase.WDLDraw:
					bound = TTExact
				case score > 0:
					bound = TTLowerBound
				default:
					bound = TTUpperBound
				}
				if bound == TTExact ||
					(bound == TTLowerBound && score >= beta) ||
					(bound == TTUpperBound && score <= alpha) {
					td.tt.Store(key, depth, AdjustScoreToTT(score, ply), 0, bound, board.NoMove, pvNode)
					return score
				}
			}
		}
	}

	var staticEval int
	switch {
	case inCheck:
		staticEval = -Infinity
	case ttHit:
		staticEval = int(probed.StaticEval)
		if probed.Bound == TTExact ||
			(probed.Bound == TTLowerBound && ttScore > staticEval) ||
			(probed.Bound == TTUpperBound && ttScore < staticEval) {
			staticEval = ttScore
		}
	default:
		staticEval = td.staticEval(ply)
	}
	td.ss[ply].staticEval = staticEval

	improving := false
	if !inCheck && ply >= 2 && td.ss[ply-2].staticEval != -Infinity {
		improving = staticEval > td.ss[ply-2].staticEval
	}

	// Internal iterative reduction: no TT move at real depth means this
	// node was never resolved deeply before, so shave a ply before doing
	// the expensive work (spec.md §4.G).
	if !inCheck && depth >= 4 && ttMove == board.NoMove && excludeMove == board.NoMove {
		depth--
	}

	if !pvNode && !inCheck && excludeMove == board.NoMove {
		// Reverse futility pruning.
		if depth <= 8 && !isMateScore(beta) && staticEval-rfpMargin(depth, improving) >= beta {
			return staticEval
		}

		// Razoring.
		if depth <= 3 {
			razorMargin := 200 * depth
			if staticEval+razorMargin < alpha {
				score := td.quiescence(ply, alpha-1, alpha)
				if score < alpha {
					return score
				}
			}
		}

		// Null-move pruning, with a verification search at high depth to
		// avoid zugzwang false positives (spec.md §12).
		if depth >= 3 && staticEval >= beta && ply >= td.nmpMinPly &&
			td.b.State().HasNonPawnMaterial(us) {
			r := 3 + depth/4
			if staticEval-beta > 200 {
				r++
			}
			reducedDepth := depth - 1 - r
			if reducedDepth < 0 {
				reducedDepth = 0
			}
			prevEP, prevKeys, prevThreats, prevPinned := td.b.MakeNullMove()
			td.ss[ply].move = board.NoMove
			nullScore := -td.negamax(reducedDepth, ply+1, -beta, -beta+1, !cutNode, board.NoMove)
			td.b.UnmakeNullMove(prevEP, prevKeys, prevThreats, prevPinned)

			if td.stopped() {
				return 0
			}
			if nullScore >= beta {
				if isMateScore(nullScore) {
					nullScore = beta
				}
				if depth < 12 {
					return nullScore
				}
				td.nmpMinPly = ply + (depth-r)*3/4
				verify := td.negamax(depth-r, ply, beta-1, beta, false, board.NoMove)
				td.nmpMinPly = 0
				if verify >= beta {
					return nullScore
				}
			}
		}

		// ProbCut: a few reduced-depth searches on good captures to find a
		// cheap cutoff well above beta.
		if depth >= 5 && !isMateScore(beta) {
			probCutBeta := beta + 150
			var caps board.ScoredMoveList
			td.b.GenerateMoves(board.GenCapturesAndPromotions, &caps)
			for i := 0; i < caps.Len(); i++ {
				m := caps.Get(i)
				if !td.b.IsLegal(m) || m == ttMove {
					continue
				}
				if !staticExchangeEval(td.b, m, probCutBeta-staticEval) {
					continue
				}
				if !td.makeMove(m, ply) {
					continue
				}
				score := -td.negamax(depth-4, ply+1, -probCutBeta, -probCutBeta+1, !cutNode, board.NoMove)
				td.unmakeMove()
				if td.stopped() {
					return 0
				}
				if score >= probCutBeta {
					td.tt.Store(key, depth-3, AdjustScoreToTT(score, ply), staticEval, TTLowerBound, m, pvNode)
					return score
				}
			}
		}
	}

	moveCount := 0
	bestScore := -Infinity
	bestMove := board.NoMove
	origAlpha := alpha
	quietsSearched := make([]board.Move, 0, 24)
	capturesSearched := make([]board.Move, 0, 8)

	refs := td.continuationRefs(ply)
	picker := NewMovePicker(td.b, td.orderer, ply, ttMove, refs)

	for {
		m, ok := picker.Next()
		if !ok {
			break
		}
		if m == excludeMove {
			continue
		}
		if isRoot && td.isExcludedRootMove(m) {
			continue
		}

		isQuiet := m.IsQuiet()
		moveCount++

		if !isRoot && bestScore > -MateScore+MaxPly && !inCheck {
			if isQuiet {
				if !pvNode && moveCount > lmpThreshold(depth, improving) {
					picker.SkipQuiets()
					continue
				}
				if depth <= 6 && staticEval+100+80*depth <= alpha {
					picker.SkipQuiets()
					continue
				}
				if depth <= 8 && !staticExchangeEval(td.b, m, -50*depth) {
					continue
				}
			} else if depth <= 8 && !staticExchangeEval(td.b, m, -90*depth) {
				continue
			}
		}

		extension := 0
		if !isRoot && depth >= 8 && m == ttMove && excludeMove == board.NoMove &&
			int(probed.Depth) >= depth-3 && probed.Bound != TTUpperBound && !isMateScore(ttScore) {
			singularBeta := ttScore - 2*depth
			singularDepth := (depth - 1) / 2
			singScore := td.negamax(singularDepth, ply, singularBeta-1, singularBeta, cutNode, m)
			switch {
			case singScore < singularBeta-80:
				extension = 3
			case singScore < singularBeta-20:
				extension = 2
			case singScore < singularBeta:
				extension = 1
			case singularBeta >= beta:
				return singularBeta
			case ttScore >= beta:
				extension = -2
			case cutNode:
				extension = -1
			}
		}

		nodesBefore := uint64(0)
		if isRoot {
			nodesBefore = td.nodes.Load()
		}
		preMoveState := *td.b.State()

		if !td.makeMove(m, ply) {
			continue
		}

		givesCheck := td.b.InCheck()
		newDepth := depth - 1 + extension
		if givesCheck && extension == 0 {
			newDepth++
		}

		var score int
		switch {
		case moveCount == 1:
			score = -td.negamax(newDepth, ply+1, -beta, -alpha, false, board.NoMove)
		default:
			reduction := 0
			if depth >= 3 && moveCount >= 3 {
				mc := moveCount
				if mc > 63 {
					mc = 63
				}
				d := depth
				if d > MaxPly-1 {
					d = MaxPly - 1
				}
				reduction = lmrTable[d][mc]
				if !pvNode {
					reduction++
				}
				if cutNode {
					reduction++
				}
				if !improving {
					reduction++
				}
				if isQuiet {
					hs := td.orderer.MainHistoryScore(&preMoveState, m, td.ss[ply].piece)
					reduction -= hs / 4096
				} else {
					reduction--
				}
				reduction = clampInt(reduction, 0, newDepth-1)
			}
			score = -td.negamax(newDepth-reduction, ply+1, -alpha-1, -alpha, true, board.NoMove)
			if reduction > 0 && score > alpha {
				score = -td.negamax(newDepth, ply+1, -alpha-1, -alpha, !cutNode, board.NoMove)
			}
			if pvNode && score > alpha && score < beta {
				score = -td.negamax(newDepth, ply+1, -beta, -alpha, false, board.NoMove)
			}
		}

		td.unmakeMove()

		if isRoot {
			td.rootNodes[m] += td.nodes.Load() - nodesBefore
		}
		if td.stopped() {
			return 0
		}

		if isQuiet {
			quietsSearched = append(quietsSearched, m)
		} else {
			capturesSearched = append(capturesSearched, m)
		}

		if score > bestScore {
			bestScore = score
			bestMove = m
			if score > alpha {
				alpha = score
				td.pv.moves[ply][ply] = m
				for j := ply + 1; j < td.pv.length[ply+1]; j++ {
					td.pv.moves[ply][j] = td.pv.moves[ply+1][j]
				}
				td.pv.length[ply] = td.pv.length[ply+1]
			}
		}

		if alpha >= beta {
			break
		}
	}

	if moveCount == 0 {
		if excludeMove != board.NoMove {
			return alpha
		}
		if inCheck {
			return -MateScore + ply
		}
		return 0
	}

	if excludeMove == board.NoMove {
		td.updateOrderingAfterMove(ply, depth, bestMove, bestScore, beta, quietsSearched, capturesSearched, refs)

		var bound TTFlag
		switch {
		case bestScore >= beta:
			bound = TTLowerBound
		case bestScore > origAlpha:
			bound = TTExact
		default:
			bound = TTUpperBound
		}
		td.tt.Store(key, depth, AdjustScoreToTT(bestScore, ply), staticEval, bound, bestMove, pvNode)

		if !inCheck && (bestMove == board.NoMove || bestMove.IsQuiet()) {
			withinBounds := !(bestScore >= beta && bestScore <= staticEval) &&
				!(bestScore <= origAlpha && bestScore >= staticEval)
			if withinBounds {
				td.orderer.UpdateCorrectionHistory(us, td.b.State(), bestScore, staticEval, depth)
			}
		}
	}

	return bestScore
}

// updateOrderingAfterMove applies the killer/history/counter-move bonuses
// and maluses once a node resolves (spec.md §4.F).
func (td *ThreadData) updateOrderingAfterMove(ply, depth int, bestMove board.Move, bestScore, beta int, quiets, captures []board.Move, refs [3]ContRef) {
	if bestScore < beta {
		return
	}
	st := td.b.State()
	if bestMove.IsQuiet() {
		td.orderer.UpdateKiller(bestMove, ply)
		if refs[0].Valid {
			td.orderer.UpdateCounterMove(refs[0].Piece, refs[0].To, bestMove)
		}
		piece := st.PieceAt(bestMove.From())
		td.orderer.UpdateMainHistory(st, bestMove, piece, depth, true)
		td.orderer.UpdateContinuationHistory(refs, piece, bestMove.To(), depth, true)
		for _, qm := range quiets {
			if qm == bestMove {
				continue
			}
			qp := st.PieceAt(qm.From())
			td.orderer.UpdateMainHistory(st, qm, qp, depth, false)
			td.orderer.UpdateContinuationHistory(refs, qp, qm.To(), depth, false)
		}
	} else {
		victim := st.PieceAt(bestMove.To()).Type()
		if bestMove.IsEnPassant() {
			victim = board.Pawn
		}
		attacker := st.PieceAt(bestMove.From())
		td.orderer.UpdateTacticalHistory(victim, attacker, bestMove.To(), depth, true)
	}
	for _, cm := range captures {
		if cm == bestMove {
			continue
		}
		victim := st.PieceAt(cm.To()).Type()
		if cm.IsEnPassant() {
			victim = board.Pawn
		}
		attacker := st.PieceAt(cm.From())
		td.orderer.UpdateTacticalHistory(victim, attacker, cm.To(), depth, false)
	}
}

// quiescence resolves captures (and, while in check, every evasion) until
// the position is quiet, to avoid the horizon effect (spec.md §4.G).
func (td *ThreadData) quiescence(ply, alpha, beta int) int {
	td.pv.length[ply] = ply

	if ShouldCheckUp(td.nodes.Load()) && td.stopped() {
		return 0
	}
	td.nodes.Add(1)

	if td.b.IsDrawAtNode(ply) || td.b.HasGameCycle(ply) {
		return 0
	}
	if ply >= MaxPly-1 || ply > maxQuiescencePly {
		return td.staticEval(ply)
	}

	inCheck := td.b.InCheck()
	key := td.b.Keys().Zobrist
	probed, ttHit := td.tt.Probe(key)
	var ttMove board.Move
	if ttHit {
		ttMove = probed.Move
		ttScore := AdjustScoreFromTT(int(probed.Score), ply)
		switch probed.Bound {
		case TTExact:
			return ttScore
		case TTLowerBound:
			if ttScore >= beta {
				return ttScore
			}
		case TTUpperBound:
			if ttScore <= alpha {
				return ttScore
			}
		}
	}

	var staticEval, bestScore int
	if inCheck {
		staticEval = -Infinity
		bestScore = -Infinity
	} else {
		if ttHit {
			staticEval = int(probed.StaticEval)
		} else {
			staticEval = td.staticEval(ply)
		}
		bestScore = staticEval
		if bestScore >= beta {
			td.tt.Store(key, 0, AdjustScoreToTT(bestScore, ply), staticEval, TTLowerBound, board.NoMove, false)
			return bestScore
		}
		if bestScore > alpha {
			alpha = bestScore
		}
		bigDelta := board.PieceValue[board.Queen]
		if staticEval+bigDelta < alpha {
			return alpha
		}
	}

	refs := td.continuationRefs(ply)
	picker := NewMovePicker(td.b, td.orderer, ply, ttMove, refs)
	if !inCheck {
		picker.SkipQuiets()
	}

	bestMove := board.NoMove
	moveCount := 0
	for {
		m, ok := picker.Next()
		if !ok {
			break
		}
		if !inCheck && m.IsQuiet() {
			continue
		}
		moveCount++

		if !inCheck {
			captureValue := 0
			if m.IsEnPassant() {
				captureValue = board.PieceValue[board.Pawn]
			} else if m.IsCapture() {
				captureValue = board.PieceValue[td.b.PieceAt(m.To()).Type()]
			}
			if m.IsPromotion() {
				captureValue += board.PieceValue[m.Promotion()] - board.PieceValue[board.Pawn]
			}
			if staticEval+captureValue+200 < alpha {
				continue
			}
			if !staticExchangeEval(td.b, m, 0) {
				continue
			}
		}

		if !td.makeMove(m, ply) {
			continue
		}
		score := -td.quiescence(ply+1, -beta, -alpha)
		td.unmakeMove()

		if td.stopped() {
			return 0
		}

		if score > bestScore {
			bestScore = score
			bestMove = m
			if score > alpha {
				alpha = score
				td.pv.moves[ply][ply] = m
				for j := ply + 1; j < td.pv.length[ply+1]; j++ {
					td.pv.moves[ply][j] = td.pv.moves[ply+1][j]
				}
				td.pv.length[ply] = td.pv.length[ply+1]
			}
		}
		if alpha >= beta {
			break
		}
	}

	if inCheck && moveCount == 0 {
		return -MateScore + ply
	}

	var bound TTFlag
	switch {
	case bestScore >= beta:
		bound = TTLowerBound
	case bestMove != board.NoMove:
		bound = TTExact
	default:
		bound = TTUpperBound
	}
	td.tt.Store(key, 0, AdjustScoreToTT(bestScore, ply), staticEval, bound, bestMove, false)

	return bestScore
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
