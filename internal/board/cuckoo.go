package board

// Cuckoo hashing table over reversible non-pawn moves, used to detect an
// upcoming repetition in O(1) inside the search tree (has_game_cycle)
// without walking the whole history on every node. Every reversible move
// (a knight/bishop/rook/queen/king move between two squares) XORs a fixed
// Zobrist delta into the key; two positions differing by exactly one such
// delta are one reversible move apart, so if that delta's recorded move is
// still legal from the current position, the game can cycle back to a
// position already seen (spec.md §4.B "cycle detection").
const cuckooSize = 8192

var (
	cuckooKeys  [cuckooSize]uint64
	cuckooMoves [cuckooSize]Move
)

func cuckooH1(key uint64) int { return int(key & (cuckooSize - 1)) }
func cuckooH2(key uint64) int { return int((key >> 16) & (cuckooSize - 1)) }

func init() {
	buildCuckoo()
}

// CuckooSnapshot returns the live cuckoo table's contents for external
// persistence (e.g. storage.CuckooCache), so a cold start can skip
// rebuilding it.
func CuckooSnapshot() (keys []uint64, moves []uint16) {
	keys = make([]uint64, cuckooSize)
	copy(keys, cuckooKeys[:])
	moves = make([]uint16, cuckooSize)
	for i, m := range cuckooMoves {
		moves[i] = uint16(m)
	}
	return keys, moves
}

// RestoreCuckoo overwrites the in-memory cuckoo table from a previously
// saved snapshot, skipping the init()-time rebuild. Returns false (leaving
// the table untouched) if the snapshot's size doesn't match this build.
func RestoreCuckoo(keys []uint64, moves []uint16) bool {
	if len(keys) != cuckooSize || len(moves) != cuckooSize {
		return false
	}
	for i := range cuckooKeys {
		cuckooKeys[i] = keys[i]
		cuckooMoves[i] = Move(moves[i])
	}
	return true
}

// buildCuckoo populates the table with every (color, pieceType, sq1, sq2)
// reversible move whose key delta is the XOR of the two piece-square
// Zobrist fragments plus the side-to-move fragment (making the move always
// flips the side to move).
func buildCuckoo() {
	for c := White; c <= Black; c++ {
		for pt := Knight; pt <= King; pt++ {
			for sq1 := A1; sq1 <= H8; sq1++ {
				for sq2 := sq1 + 1; sq2 <= H8; sq2++ {
					if !pseudoAttacksBetween(pt, sq1, sq2) {
						continue
					}
					key := ZobristPiece(c, pt, sq1) ^ ZobristPiece(c, pt, sq2) ^ ZobristSideToMove()
					insertCuckoo(key, NewMove(sq1, sq2))
				}
			}
		}
	}
}

// pseudoAttacksBetween reports whether a piece of type pt on an otherwise
// empty board attacks from sq1 to sq2 (and thus sq2 to sq1): the geometric
// reversibility test the cuckoo table is built from.
func pseudoAttacksBetween(pt PieceType, sq1, sq2 Square) bool {
	switch pt {
	case Knight:
		return knightAttacks[sq1]&SquareBB(sq2) != 0
	case Bishop:
		return BishopAttacks(sq1, 0)&SquareBB(sq2) != 0
	case Rook:
		return RookAttacks(sq1, 0)&SquareBB(sq2) != 0
	case Queen:
		return QueenAttacks(sq1, 0)&SquareBB(sq2) != 0
	case King:
		return kingAttacks[sq1]&SquareBB(sq2) != 0
	}
	return false
}

// insertCuckoo performs standard cuckoo insertion with eviction between the
// two candidate slots, matching viridithas's cuckoo table construction.
func insertCuckoo(key uint64, m Move) {
	i := cuckooH1(key)
	for {
		if cuckooKeys[i] == 0 {
			cuckooKeys[i] = key
			cuckooMoves[i] = m
			return
		}
		key, cuckooKeys[i] = cuckooKeys[i], key
		m, cuckooMoves[i] = cuckooMoves[i], m

		j := cuckooH1(key)
		if j == i {
			j = cuckooH2(key)
		}
		i = j
	}
}

// HasGameCycle reports whether the current position can reach, via a single
// further reversible move, a position already present in the last
// HalfMoveClock plies of history with the OPPONENT to move — i.e. an
// upcoming repetition the search should treat as a draw score without
// needing to actually reach it (spec.md §4.B).
func (b *Board) HasGameCycle(searchPly int) bool {
	st := &b.st
	limit := st.HalfMoveClock
	n := len(b.history)
	if limit > n {
		limit = n
	}

	occAny := st.AllOccupied
	for d := 3; d <= limit; d += 2 {
		past := b.history[n-d]
		diff := st.Keys.Zobrist ^ past.Keys.Zobrist

		slot := cuckooH1(diff)
		if cuckooKeys[slot] != diff {
			slot = cuckooH2(diff)
			if cuckooKeys[slot] != diff {
				continue
			}
		}

		m := cuckooMoves[slot]
		from, to := m.From(), m.To()

		var moved Square
		if st.IsEmpty(from) {
			if st.IsEmpty(to) {
				continue
			}
			moved = to
		} else {
			moved = from
		}
		piece := st.PieceAt(moved)
		if piece == NoPiece {
			continue
		}

		blockers := Between(from, to) &^ SquareBB(moved)
		if blockers&occAny != 0 {
			continue
		}

		if searchPly > d {
			return true
		}
		// Repetitions fully inside the history (not yet reached this search)
		// only count if they are a genuine threefold, i.e. the position
		// already occurred twice before this point.
		if piece.Color() != st.SideToMove {
			continue
		}
		for e := d + 2; e <= limit; e += 2 {
			if b.history[n-e].Keys.Zobrist == past.Keys.Zobrist {
				return true
			}
		}
	}
	return false
}
