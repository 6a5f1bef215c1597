package board

// Board owns the live State, a search-height counter, a game-ply counter,
// and a history of past States (spec.md §3). Unmake is a stack pop: no
// incremental reversal logic is needed because every make pushes a full
// snapshot before mutating anything.
type Board struct {
	st       State
	history  []State
	ply      int // moves played since the search root (search height)
	gamePly  int // moves played since the start of the game
	chess960 bool
}

// NewBoard returns a board set up at the standard starting position.
func NewBoard() *Board {
	b := &Board{chess960: false}
	if err := b.SetFEN(StartFEN); err != nil {
		panic("board: invalid built-in start FEN: " + err.Error())
	}
	return b
}

// Clone returns an independent copy of b: a Lazy-SMP worker gets its own
// board from the root position, since history is a slice and a shallow
// struct copy would alias it across goroutines.
func (b *Board) Clone() *Board {
	nb := &Board{
		st:       b.st,
		ply:      b.ply,
		gamePly:  b.gamePly,
		chess960: b.chess960,
	}
	nb.history = make([]State, len(b.history))
	copy(nb.history, b.history)
	return nb
}

// SetChess960 toggles Chess960/FRC castling notation and start-position rules.
func (b *Board) SetChess960(v bool) { b.chess960 = v }

// Chess960 reports whether the board is running in Chess960 mode.
func (b *Board) Chess960() bool { return b.chess960 }

// State returns a pointer to the live state (callers such as the NNUE
// evaluator and move ordering only read through it).
func (b *Board) State() *State { return &b.st }

// SideToMove returns the color to move.
func (b *Board) SideToMove() Color { return b.st.SideToMove }

// Ply returns the current search height (moves made since root).
func (b *Board) Ply() int { return b.ply }

// GamePly returns moves made since the start of the game.
func (b *Board) GamePly() int { return b.gamePly }

// Keys returns the live Zobrist key bundle.
func (b *Board) Keys() Keys { return b.st.Keys }

// PieceAt returns the piece on a square.
func (b *Board) PieceAt(sq Square) Piece { return b.st.PieceAt(sq) }

// InCheck reports whether the side to move is in check.
func (b *Board) InCheck() bool { return b.st.InCheck() }

// pushHistory snapshots the current state before mutation.
func (b *Board) pushHistory() {
	b.history = append(b.history, b.st)
}

// MakeMove applies a legal or pseudo-legal move, recording the feature
// deltas produced into ub (may be nil if the caller doesn't need them,
// e.g. perft). Returns false — and leaves the board exactly as it was
// before the call — if the move leaves the mover's own king in check.
//
// Procedure (spec.md §4.B):
//  1. push a State snapshot
//  2. clear the moving piece from its origin
//  3. resolve captures (including en passant) and castling rook relocation
//  4. place the moving (or promoted) piece at its destination
//  5. update the en passant square
//  6. update castling rights
//  7. flip the side to move, bump clocks
//  8. XOR in the Zobrist deltas, recompute threats/pins from scratch
//  9. verify legality; on failure, pop the snapshot and report false
func (b *Board) MakeMove(m Move, ub *UpdateBuffer) bool {
	b.pushHistory()
	st := &b.st
	us := st.SideToMove
	them := us.Other()
	from, to := m.From(), m.To()
	mover := st.PieceAt(from)

	prevEP := st.EnPassant
	prevRights := st.Rights

	st.HalfMoveClock++
	if mover.Type() == Pawn {
		st.HalfMoveClock = 0
	}
	st.EnPassant = NoSquare

	switch {
	case m.IsCastling():
		b.applyCastle(m, us, ub)
	case m.IsEnPassant():
		capSq := NewSquare(to.File(), from.Rank())
		captured := st.removePiece(capSq)
		st.movePiece(from, to)
		st.HalfMoveClock = 0
		if ub != nil {
			ub.Sub(mover, from)
			ub.Sub(captured, capSq)
			ub.Add(mover, to)
		}
		st.Keys.togglePiece(us, Pawn, from)
		st.Keys.togglePiece(them, Pawn, capSq)
		st.Keys.togglePiece(us, Pawn, to)
	case m.IsPromotion():
		var captured Piece = NoPiece
		if m.IsCapture() {
			captured = st.removePiece(to)
			st.HalfMoveClock = 0
		}
		st.removePiece(from)
		promoted := NewPiece(m.Promotion(), us)
		st.setPiece(promoted, to)
		if ub != nil {
			ub.Sub(mover, from)
			if captured != NoPiece {
				ub.Sub(captured, to)
			}
			ub.Add(promoted, to)
		}
		st.Keys.togglePiece(us, Pawn, from)
		if captured != NoPiece {
			st.Keys.togglePiece(them, captured.Type(), to)
		}
		st.Keys.togglePiece(us, m.Promotion(), to)
	default:
		var captured Piece = NoPiece
		if m.IsCapture() {
			captured = st.removePiece(to)
			st.HalfMoveClock = 0
		}
		st.movePiece(from, to)
		if ub != nil {
			ub.Sub(mover, from)
			if captured != NoPiece {
				ub.Sub(captured, to)
			}
			ub.Add(mover, to)
		}
		st.Keys.togglePiece(us, mover.Type(), from)
		if captured != NoPiece {
			st.Keys.togglePiece(them, captured.Type(), to)
		}
		st.Keys.togglePiece(us, mover.Type(), to)

		if mover.Type() == Pawn && abs(to.Rank()-from.Rank()) == 2 {
			epSq := NewSquare(from.File(), (int(from.Rank())+int(to.Rank()))/2)
			if epCaptureIsPossible(st, epSq, them) {
				st.EnPassant = epSq
			}
		}
	}

	b.updateCastlingRights(mover, us, from, to, m)

	if prevEP != NoSquare {
		st.Keys.toggleEnPassant(prevEP.File())
	}
	if st.EnPassant != NoSquare {
		st.Keys.toggleEnPassant(st.EnPassant.File())
	}
	if prevRights != st.Rights {
		st.Keys.toggleCastling(prevRights.presenceMask())
		st.Keys.toggleCastling(st.Rights.presenceMask())
	}

	st.SideToMove = them
	st.Keys.toggleSideToMove()
	if them == White {
		st.FullMoveNumber++
	}

	st.recomputeThreatsAndPins()

	if kingInCheckAfterOwnMove(st, us) {
		n := len(b.history)
		b.st = b.history[n-1]
		b.history = b.history[:n-1]
		return false
	}

	b.ply++
	b.gamePly++
	return true
}

// kingInCheckAfterOwnMove re-tests whether mover's (now side-not-to-move)
// king is attacked; used because Threats.Checkers is defined relative to
// the NEW side to move, not the mover.
func kingInCheckAfterOwnMove(st *State, mover Color) bool {
	kingSq := st.KingSquare[mover]
	return attackersOf(st.Pieces, st.AllOccupied, kingSq, mover.Other()) != 0
}

// applyCastle relocates king and rook for a king-captures-rook encoded
// castling move.
func (b *Board) applyCastle(m Move, us Color, ub *UpdateBuffer) {
	st := &b.st
	kingFrom, rookFrom := m.From(), m.To()
	kingSide := rookFrom.File() > kingFrom.File()

	kingTo := NewSquare(6, kingFrom.Rank())
	rookTo := NewSquare(5, kingFrom.Rank())
	if !kingSide {
		kingTo = NewSquare(2, kingFrom.Rank())
		rookTo = NewSquare(3, kingFrom.Rank())
	}

	king := st.removePiece(kingFrom)
	rook := st.removePiece(rookFrom)
	st.setPiece(king, kingTo)
	st.setPiece(rook, rookTo)

	if ub != nil {
		ub.Sub(king, kingFrom)
		ub.Sub(rook, rookFrom)
		ub.Add(king, kingTo)
		ub.Add(rook, rookTo)
	}

	st.Keys.togglePiece(us, King, kingFrom)
	st.Keys.togglePiece(us, Rook, rookFrom)
	st.Keys.togglePiece(us, King, kingTo)
	st.Keys.togglePiece(us, Rook, rookTo)
}

// updateCastlingRights clears rights invalidated by this move: king moves
// (including castling) clear both of the mover's rights; a rook moving off,
// or being captured on, its recorded file clears that single right.
func (b *Board) updateCastlingRights(mover Piece, us Color, from, to Square, m Move) {
	st := &b.st
	if mover.Type() == King {
		st.Rights.ClearColor(us)
		return
	}
	if mover.Type() == Rook {
		clearIfMatches(&st.Rights, us, from)
	}
	if m.IsCapture() && !m.IsEnPassant() {
		them := us.Other()
		capturedSq := to
		clearIfMatches(&st.Rights, them, capturedSq)
	}
}

func clearIfMatches(cr *CastlingRights, c Color, sq Square) {
	if sq.Rank() != homeRank(c) {
		return
	}
	if cr.Has(c, true) && cr.RookFile(c, true) == sq.File() {
		cr.Clear(c, true)
	}
	if cr.Has(c, false) && cr.RookFile(c, false) == sq.File() {
		cr.Clear(c, false)
	}
}

func homeRank(c Color) int {
	if c == White {
		return 0
	}
	return 7
}

// epCaptureIsPossible reports whether an enemy pawn attacks epSq (whether
// that capture would be legal, e.g. under a pin, is not tested), per spec.md's "only set the en passant square when a capture is
// actually possible" rule (avoids polluting the Zobrist key on double
// pushes that can never be answered en passant).
func epCaptureIsPossible(st *State, epSq Square, them Color) bool {
	attackers := pawnAttacks[them.Other()][epSq] & st.Pieces[them][Pawn]
	return attackers != 0
}

// UnmakeMove restores the previous State by popping the history stack.
func (b *Board) UnmakeMove() {
	n := len(b.history)
	b.st = b.history[n-1]
	b.history = b.history[:n-1]
	if b.ply > 0 {
		b.ply--
	}
	if b.gamePly > 0 {
		b.gamePly--
	}
}

// MakeNullMove flips the side to move without moving a piece, used by
// null-move pruning. Only the fields a null move can change are saved.
func (b *Board) MakeNullMove() (prevEP Square, prevKeys Keys, prevThreats Threats, prevPinned [2]Bitboard) {
	st := &b.st
	prevEP, prevKeys, prevThreats, prevPinned = st.EnPassant, st.Keys, st.Threats, st.Pinned

	if st.EnPassant != NoSquare {
		st.Keys.toggleEnPassant(st.EnPassant.File())
		st.EnPassant = NoSquare
	}
	st.SideToMove = st.SideToMove.Other()
	st.Keys.toggleSideToMove()
	st.recomputeThreatsAndPins()
	b.ply++
	return
}

// UnmakeNullMove restores the fields MakeNullMove changed.
func (b *Board) UnmakeNullMove(prevEP Square, prevKeys Keys, prevThreats Threats, prevPinned [2]Bitboard) {
	st := &b.st
	st.SideToMove = st.SideToMove.Other()
	st.EnPassant = prevEP
	st.Keys = prevKeys
	st.Threats = prevThreats
	st.Pinned = prevPinned
	if b.ply > 0 {
		b.ply--
	}
}

// IsRepetitionDraw walks the history looking for a position that repeats
// the current key; twofold is sufficient inside the search tree (spec.md
// §4.B/§8 property 9), threefold is required at the game level.
func (b *Board) IsRepetitionDraw(twofold bool) bool {
	key := b.st.Keys.Zobrist
	limit := b.st.HalfMoveClock
	n := len(b.history)
	count := 0
	for i := 1; i <= limit && i <= n; i++ {
		past := b.history[n-i]
		if past.Keys.Zobrist == key {
			count++
			if twofold || count >= 2 {
				return true
			}
		}
		// A halfmove clock reset (capture or pawn move) means no position
		// before it can repeat this one.
		if past.HalfMoveClock == 0 {
			break
		}
	}
	return false
}

// IsFiftyMoveDraw reports whether the 50-move rule applies.
func (b *Board) IsFiftyMoveDraw() bool { return b.st.HalfMoveClock >= 100 }

// IsDraw reports any of the automatic draw conditions except stalemate,
// which callers must detect via move generation (spec.md §8 property 13).
// Repetition requires a true three-fold repeat from game history.
func (b *Board) IsDraw() bool {
	return b.IsFiftyMoveDraw() || b.st.IsInsufficientMaterial() || b.IsRepetitionDraw(false)
}

// IsDrawAtNode is IsDraw for use at a search tree node ply levels below
// the search root: a repeated position only needs to occur twice to be
// scored as a draw there, since the side to move can simply repeat moves
// to force what would become a true three-fold repeat at the game level
// (spec.md §4.B, §8 property 14). At the root itself (ply 0) a real
// three-fold repeat from game history is still required.
func (b *Board) IsDrawAtNode(ply int) bool {
	return b.IsFiftyMoveDraw() || b.st.IsInsufficientMaterial() || b.IsRepetitionDraw(ply > 0)
}
