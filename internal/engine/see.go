package engine

import "github.com/hailam/chessplay/internal/board"

// seeValue is the material value SEE trades pieces at; king is given a
// large value so a king "capture" never looks like a losing trade (it can
// only happen as the final recapture in a swap sequence, which SEE never
// actually reaches in a legal position).
var seeValue = [7]int{100, 320, 330, 500, 900, 20000, 0}

// staticExchangeEval computes whether playing m on b and letting both
// sides recapture optimally nets at least threshold centipawns, without
// making any move (classical gain-array SEE, grounded on viridithas's
// `see.rs`).
func staticExchangeEval(b *board.Board, m board.Move, threshold int) bool {
	st := b.State()
	from, to := m.From(), m.To()

	if m.IsCastling() {
		return 0 >= threshold
	}

	attacker := st.PieceAt(from)
	var gain [32]int
	depth := 0

	var captured board.PieceType = board.NoPieceType
	if m.IsEnPassant() {
		captured = board.Pawn
	} else if m.IsCapture() {
		captured = st.PieceAt(to).Type()
	}
	if captured != board.NoPieceType {
		gain[0] = seeValue[captured]
	}
	if m.IsPromotion() {
		gain[0] += seeValue[m.Promotion()] - seeValue[board.Pawn]
	}

	occupied := st.AllOccupied
	occupied = occupied.Clear(from)
	if m.IsEnPassant() {
		epVictim := board.NewSquare(int(to.File()), int(from.Rank()))
		occupied = occupied.Clear(epVictim)
	}
	occupied = occupied.Set(to)

	attackerType := attacker.Type()
	if m.IsPromotion() {
		attackerType = m.Promotion()
	}
	side := st.SideToMove.Other()

	attackersTo := func(occ board.Bitboard) board.Bitboard {
		return rawAttackersOf(st, occ, to, board.White) | rawAttackersOf(st, occ, to, board.Black)
	}

	occ := occupied
	attackers := attackersTo(occ)

	for depth < 31 {
		ours := attackers & occ & st.Occupied[side]
		if ours == 0 {
			break
		}
		depth++
		gain[depth] = seeValue[attackerType] - gain[depth-1]
		if max(-gain[depth-1], gain[depth]) < 0 {
			// Further trades can never recover: prune the loop early.
			break
		}
		nextSq, nextType, ok := leastValuableAttacker(st, ours)
		if !ok {
			break
		}
		occ = occ.Clear(nextSq)
		attackers = attackersTo(occ)
		attackerType = nextType
		side = side.Other()
	}

	for depth--; depth > 0; depth-- {
		gain[depth-1] = -max(-gain[depth-1], gain[depth])
	}
	return gain[0] >= threshold
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// rawAttackersOf mirrors board.AttackersTo but against a caller-supplied
// occupancy, which SEE needs as it hypothetically removes pieces from the
// board without making real moves.
func rawAttackersOf(st *board.State, occ board.Bitboard, sq board.Square, by board.Color) board.Bitboard {
	return board.AttackersOfOccupancy(st.Pieces, occ, sq, by)
}

// leastValuableAttacker picks the cheapest piece among attackers (already
// filtered to one side), returning its square and type.
func leastValuableAttacker(st *board.State, attackers board.Bitboard) (board.Square, board.PieceType, bool) {
	if attackers == 0 {
		return 0, board.NoPieceType, false
	}
	for pt := board.Pawn; pt <= board.King; pt++ {
		bb := attackers & (st.Pieces[board.White][pt] | st.Pieces[board.Black][pt])
		if bb != 0 {
			return bb.LSB(), pt, true
		}
	}
	return 0, board.NoPieceType, false
}
