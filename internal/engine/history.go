package engine

import "github.com/hailam/chessplay/internal/board"

// History tables are all per-thread and updated with a gravity formula that
// keeps values bounded without a hard clear between searches: new = old +
// bonus - old*|bonus|/historyMax (spec.md §4.F). Periodic aging (dividing
// every table down) happens in (*MoveOrderer).Clear between searches.
const (
	historyMax   = 16384
	maxHistBonus = 2048
)

// gravity applies one bounded update step to a history cell, grounded on
// the teacher's ordering.go save/clamp style but generalized to the
// spec's gravity formula instead of a hard +=/clamp.
func gravity(v int16, bonus int) int16 {
	if bonus > maxHistBonus {
		bonus = maxHistBonus
	} else if bonus < -maxHistBonus {
		bonus = -maxHistBonus
	}
	delta := bonus - int(v)*abs(bonus)/historyMax
	nv := int(v) + delta
	if nv > historyMax {
		nv = historyMax
	} else if nv < -historyMax {
		nv = -historyMax
	}
	return int16(nv)
}

func historyBonus(depth int) int {
	b := depth * depth * 4
	if b > maxHistBonus {
		b = maxHistBonus
	}
	return b
}

// MoveOrderer owns every per-thread ordering table: killers, main history,
// tactical (capture) history, continuation history, counter moves, and the
// four correction-history tables (spec.md §4.F).
type MoveOrderer struct {
	killers [MaxPly]board.Move

	// mainHistory[fromAttacked][toAttacked][piece][to] — the butterfly
	// table extended with whether the move's origin/destination square is
	// currently attacked by the opponent, following Stockfish's low-ply
	// threat-aware history that viridithas's worker.rs also keys on.
	mainHistory [2][2][12][64]int16

	// tacticalHistory[capturedType][movedPiece][to].
	tacticalHistory [6][12][64]int16

	// continuationHistory[prevPiece][prevTo][piece][to], looked up at
	// offsets 1, 2 and 4 plies back and summed (spec.md §4.F).
	continuationHistory [12][64][12][64]int16

	counterMoves [12][64]board.Move

	pawnCorrection    [2][16384]int16
	nonPawnCorrection [2][2][16384]int16 // [perspective][piece-color]
	majorCorrection   [2][16384]int16
	minorCorrection   [2][16384]int16
}

func NewMoveOrderer() *MoveOrderer { return &MoveOrderer{} }

// Clear ages every table (divides, does not zero) and resets killers and
// counter moves for a fresh search, matching the teacher's decay-not-wipe
// behaviour.
func (mo *MoveOrderer) Clear() {
	for i := range mo.killers {
		mo.killers[i] = board.NoMove
	}
	for i := range mo.counterMoves {
		for j := range mo.counterMoves[i] {
			mo.counterMoves[i][j] = board.NoMove
		}
	}
	age2 := func(t *[2][2][12][64]int16) {
		for a := range t {
			for b := range t[a] {
				for c := range t[a][b] {
					for d := range t[a][b][c] {
						t[a][b][c][d] /= 2
					}
				}
			}
		}
	}
	age2(&mo.mainHistory)

	for a := range mo.tacticalHistory {
		for b := range mo.tacticalHistory[a] {
			for c := range mo.tacticalHistory[a][b] {
				mo.tacticalHistory[a][b][c] /= 2
			}
		}
	}
	for a := range mo.continuationHistory {
		for b := range mo.continuationHistory[a] {
			for c := range mo.continuationHistory[a][b] {
				for d := range mo.continuationHistory[a][b][c] {
					mo.continuationHistory[a][b][c][d] /= 2
				}
			}
		}
	}
	// Correction history persists across searches (it tracks position
	// evaluation bias, not move quality) and is only gravity-updated.
}

// --- killers ---

func (mo *MoveOrderer) UpdateKiller(m board.Move, ply int) {
	if ply >= MaxPly {
		return
	}
	mo.killers[ply] = m
}

func (mo *MoveOrderer) Killer(ply int) board.Move {
	if ply >= MaxPly {
		return board.NoMove
	}
	return mo.killers[ply]
}

// --- main (butterfly) history ---

func boolIdx(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (mo *MoveOrderer) mainHistCell(st *board.State, m board.Move, piece board.Piece) *int16 {
	fromAttacked := st.Threats.All.IsSet(m.From())
	toAttacked := st.Threats.All.IsSet(m.To())
	return &mo.mainHistory[boolIdx(fromAttacked)][boolIdx(toAttacked)][piece][m.To()]
}

func (mo *MoveOrderer) MainHistoryScore(st *board.State, m board.Move, piece board.Piece) int {
	return int(*mo.mainHistCell(st, m, piece))
}

func (mo *MoveOrderer) UpdateMainHistory(st *board.State, m board.Move, piece board.Piece, depth int, good bool) {
	bonus := historyBonus(depth)
	if !good {
		bonus = -bonus
	}
	cell := mo.mainHistCell(st, m, piece)
	*cell = gravity(*cell, bonus)
}

// --- tactical (capture) history ---

func (mo *MoveOrderer) TacticalHistoryScore(captured board.PieceType, moved board.Piece, to board.Square) int {
	if captured >= board.King {
		return 0
	}
	return int(mo.tacticalHistory[captured][moved][to])
}

func (mo *MoveOrderer) UpdateTacticalHistory(captured board.PieceType, moved board.Piece, to board.Square, depth int, good bool) {
	if captured >= board.King {
		return
	}
	bonus := historyBonus(depth)
	if !good {
		bonus = -bonus
	}
	cell := &mo.tacticalHistory[captured][moved][to]
	*cell = gravity(*cell, bonus)
}

// --- continuation history ---

// ContRef names one ply back in the search stack so continuation-history
// lookups/updates can be applied uniformly at offsets 1, 2 and 4.
type ContRef struct {
	Piece board.Piece
	To    board.Square
	Valid bool
}

func (mo *MoveOrderer) ContinuationScore(prevs [3]ContRef, piece board.Piece, to board.Square) int {
	total := 0
	for _, p := range prevs {
		if !p.Valid {
			continue
		}
		total += int(mo.continuationHistory[p.Piece][p.To][piece][to])
	}
	return total
}

func (mo *MoveOrderer) UpdateContinuationHistory(prevs [3]ContRef, piece board.Piece, to board.Square, depth int, good bool) {
	bonus := historyBonus(depth)
	if !good {
		bonus = -bonus
	}
	for _, p := range prevs {
		if !p.Valid {
			continue
		}
		cell := &mo.continuationHistory[p.Piece][p.To][piece][to]
		*cell = gravity(*cell, bonus)
	}
}

// --- counter moves ---

func (mo *MoveOrderer) UpdateCounterMove(prevPiece board.Piece, prevTo board.Square, counter board.Move) {
	if prevPiece == board.NoPiece {
		return
	}
	mo.counterMoves[prevPiece][prevTo] = counter
}

func (mo *MoveOrderer) CounterMove(prevPiece board.Piece, prevTo board.Square) board.Move {
	if prevPiece == board.NoPiece {
		return board.NoMove
	}
	return mo.counterMoves[prevPiece][prevTo]
}

// --- correction history ---

// correctionBonus scales a search-vs-static-eval delta to the correction
// table's gravity step; deeper confirmations move the bucket further.
func correctionBonus(delta, depth int) int {
	b := delta * depth
	if b > maxHistBonus*4 {
		b = maxHistBonus * 4
	} else if b < -maxHistBonus*4 {
		b = -maxHistBonus * 4
	}
	return b
}

func correctionGravity(v int16, bonus int) int16 {
	const corrMax = 32768
	delta := bonus - int(v)*abs(bonus)/corrMax
	nv := int(v) + delta
	if nv > corrMax-1 {
		nv = corrMax - 1
	} else if nv < -corrMax {
		nv = -corrMax
	}
	return int16(nv)
}

// CorrectionAdjustment sums the pawn/non-pawn/major/minor correction
// buckets for st, to be added to the raw NNUE score before it is used as
// the node's static evaluation (spec.md §4.F).
func (mo *MoveOrderer) CorrectionAdjustment(us board.Color, st *board.State) int {
	pawnIdx := st.Keys.Pawn % 16384
	majorIdx := st.Keys.Major % 16384
	minorIdx := st.Keys.Minor % 16384

	sum := int(mo.pawnCorrection[us][pawnIdx])
	sum += int(mo.nonPawnCorrection[us][board.White][st.Keys.NonPawn[board.White]%16384])
	sum += int(mo.nonPawnCorrection[us][board.Black][st.Keys.NonPawn[board.Black]%16384])
	sum += int(mo.majorCorrection[us][majorIdx])
	sum += int(mo.minorCorrection[us][minorIdx])
	return sum / 4
}

// UpdateCorrectionHistory feeds (searchScore - staticEval) back into every
// correction bucket for st, gravity-weighted by depth.
func (mo *MoveOrderer) UpdateCorrectionHistory(us board.Color, st *board.State, searchScore, staticEval, depth int) {
	if depth < 1 {
		return
	}
	bonus := correctionBonus(searchScore-staticEval, depth)

	pawnIdx := st.Keys.Pawn % 16384
	majorIdx := st.Keys.Major % 16384
	minorIdx := st.Keys.Minor % 16384

	cell := &mo.pawnCorrection[us][pawnIdx]
	*cell = correctionGravity(*cell, bonus)

	for _, c := range [2]board.Color{board.White, board.Black} {
		idx := st.Keys.NonPawn[c] % 16384
		cell := &mo.nonPawnCorrection[us][c][idx]
		*cell = correctionGravity(*cell, bonus)
	}

	cell = &mo.majorCorrection[us][majorIdx]
	*cell = correctionGravity(*cell, bonus)
	cell = &mo.minorCorrection[us][minorIdx]
	*cell = correctionGravity(*cell, bonus)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
