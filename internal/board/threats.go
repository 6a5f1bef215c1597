package board

// Threats is a snapshot of {all squares attacked by the side not to move,
// the checker set for the side to move}, cached on the board and
// recomputed after every state change that could affect either (spec.md
// §3 "Threats").
type Threats struct {
	All      Bitboard // union of attack sets of every piece of the side NOT to move
	Checkers Bitboard // enemy pieces currently attacking our king
}

// computeThreats recomputes Threats from scratch for the given side to
// move, against the supplied piece placement. This is the authoritative
// definition used both by make_move and by the invariant-checking tests
// (spec.md §8, property 6).
func computeThreats(pieces [2][6]Bitboard, occupied Bitboard, stm Color, kingSq [2]Square) Threats {
	them := stm.Other()
	var all Bitboard

	pawns := pieces[them][Pawn]
	for pawns != 0 {
		sq := pawns.PopLSB()
		all |= pawnAttacks[them][sq]
	}
	knights := pieces[them][Knight]
	for knights != 0 {
		all |= knightAttacks[knights.PopLSB()]
	}
	// Sliding pieces are computed with the friendly king removed from the
	// occupancy, so that a king "sliding away" along the attack ray is
	// still recognised as moving into check (used by is_legal's king-move
	// fast test, spec.md §4.B).
	occWithoutKing := occupied &^ SquareBB(kingSq[stm])
	bishops := pieces[them][Bishop] | pieces[them][Queen]
	for bishops != 0 {
		all |= BishopAttacks(bishops.PopLSB(), occWithoutKing)
	}
	rooks := pieces[them][Rook] | pieces[them][Queen]
	for rooks != 0 {
		all |= RookAttacks(rooks.PopLSB(), occWithoutKing)
	}
	all |= kingAttacks[kingSq[them]]

	checkers := attackersOf(pieces, occupied, kingSq[stm], them)

	return Threats{All: all, Checkers: checkers}
}

// attackersOf returns the set of byColor's pieces attacking sq given an
// arbitrary occupancy (used for threats, checkers, and the en-passant and
// king legality tests in movegen.go).
func attackersOf(pieces [2][6]Bitboard, occupied Bitboard, sq Square, byColor Color) Bitboard {
	us := byColor.Other()
	return (pawnAttacks[us][sq] & pieces[byColor][Pawn]) |
		(knightAttacks[sq] & pieces[byColor][Knight]) |
		(kingAttacks[sq] & pieces[byColor][King]) |
		(BishopAttacks(sq, occupied) & (pieces[byColor][Bishop] | pieces[byColor][Queen])) |
		(RookAttacks(sq, occupied) & (pieces[byColor][Rook] | pieces[byColor][Queen]))
}

// computePinned computes, for color c, the set of c's pieces pinned to c's
// own king by an enemy slider (x-ray attack detection), per spec.md §3/§4.B.
func computePinned(pieces [2][6]Bitboard, occupied Bitboard, own Bitboard, c Color, kingSq Square) Bitboard {
	them := c.Other()
	var pinned Bitboard

	snipers := RookAttacks(kingSq, 0) & (pieces[them][Rook] | pieces[them][Queen])
	for snipers != 0 {
		sq := snipers.PopLSB()
		blockers := Between(sq, kingSq) & occupied
		if blockers.PopCount() == 1 && blockers&own != 0 {
			pinned |= blockers
		}
	}

	snipers = BishopAttacks(kingSq, 0) & (pieces[them][Bishop] | pieces[them][Queen])
	for snipers != 0 {
		sq := snipers.PopLSB()
		blockers := Between(sq, kingSq) & occupied
		if blockers.PopCount() == 1 && blockers&own != 0 {
			pinned |= blockers
		}
	}

	return pinned
}
