package board

// GenMode selects which subset of pseudo-legal moves GenerateMoves produces,
// matching the staged move picker's three generation passes (spec.md §4.C).
type GenMode int

const (
	GenAll GenMode = iota
	GenCapturesAndPromotions
	GenQuiets
)

// GenerateMoves appends pseudo-legal moves of the requested kind to ml. It
// does not filter for legality — callers run IsLegal on each candidate (the
// staged move picker) or use GenerateLegalMoves for an already-filtered list.
func (b *Board) GenerateMoves(mode GenMode, ml *ScoredMoveList) {
	st := &b.st
	us := st.SideToMove
	them := us.Other()
	occupied := st.AllOccupied
	enemies := st.Occupied[them]

	switch mode {
	case GenAll:
		b.generatePawnMoves(ml, us, enemies, occupied, true, true)
		b.generatePieceMoves(ml, us, occupied, ^st.Occupied[us])
		b.generateKingMoves(ml, us, ^st.Occupied[us])
		b.generateCastlingMoves(ml, us)
	case GenCapturesAndPromotions:
		b.generatePawnMoves(ml, us, enemies, occupied, true, false)
		b.generatePieceMoves(ml, us, occupied, enemies)
		b.generateKingMoves(ml, us, enemies)
	case GenQuiets:
		b.generatePawnMoves(ml, us, enemies, occupied, false, true)
		b.generatePieceMoves(ml, us, occupied, ^occupied)
		b.generateKingMoves(ml, us, ^occupied)
		b.generateCastlingMoves(ml, us)
	}
}

// GenerateLegalMoves returns every legal move in the position. Used by
// perft, mate/stalemate detection, and tests; the search's hot path uses
// the staged picker plus IsLegal instead of materializing this list.
func (b *Board) GenerateLegalMoves() *ScoredMoveList {
	ml := NewMoveList()
	b.GenerateMoves(GenAll, ml)
	result := NewMoveList()
	for i := 0; i < ml.Len(); i++ {
		m := ml.Get(i)
		if b.IsLegal(m) {
			result.Add(m)
		}
	}
	return result
}

func (b *Board) generatePieceMoves(ml *ScoredMoveList, us Color, occupied, targets Bitboard) {
	st := &b.st

	knights := st.Pieces[us][Knight]
	for knights != 0 {
		from := knights.PopLSB()
		attacks := knightAttacks[from] & targets
		for attacks != 0 {
			ml.Add(NewMoveMaybeCapture(st, from, attacks.PopLSB()))
		}
	}

	bishops := st.Pieces[us][Bishop]
	for bishops != 0 {
		from := bishops.PopLSB()
		attacks := BishopAttacks(from, occupied) & targets
		for attacks != 0 {
			ml.Add(NewMoveMaybeCapture(st, from, attacks.PopLSB()))
		}
	}

	rooks := st.Pieces[us][Rook]
	for rooks != 0 {
		from := rooks.PopLSB()
		attacks := RookAttacks(from, occupied) & targets
		for attacks != 0 {
			ml.Add(NewMoveMaybeCapture(st, from, attacks.PopLSB()))
		}
	}

	queens := st.Pieces[us][Queen]
	for queens != 0 {
		from := queens.PopLSB()
		attacks := QueenAttacks(from, occupied) & targets
		for attacks != 0 {
			ml.Add(NewMoveMaybeCapture(st, from, attacks.PopLSB()))
		}
	}
}

func (b *Board) generateKingMoves(ml *ScoredMoveList, us Color, targets Bitboard) {
	st := &b.st
	from := st.KingSquare[us]
	attacks := kingAttacks[from] & targets
	for attacks != 0 {
		ml.Add(NewMoveMaybeCapture(st, from, attacks.PopLSB()))
	}
}

// NewMoveMaybeCapture builds a quiet or capturing move depending on whether
// the destination is occupied by the enemy.
func NewMoveMaybeCapture(st *State, from, to Square) Move {
	if st.PieceAt(to) != NoPiece {
		return NewCapture(from, to)
	}
	return NewMove(from, to)
}

func (b *Board) generatePawnMoves(ml *ScoredMoveList, us Color, enemies, occupied Bitboard, captures, quiets bool) {
	st := &b.st
	pawns := st.Pieces[us][Pawn]
	empty := ^occupied

	var push1, push2, attackL, attackR Bitboard
	var promotionRank Bitboard
	var pushDir int

	if us == White {
		push1 = pawns.North() & empty
		push2 = (push1 & Rank3).North() & empty
		attackL = pawns.NorthWest() & enemies
		attackR = pawns.NorthEast() & enemies
		promotionRank = Rank8
		pushDir = 8
	} else {
		push1 = pawns.South() & empty
		push2 = (push1 & Rank6).South() & empty
		attackL = pawns.SouthWest() & enemies
		attackR = pawns.SouthEast() & enemies
		promotionRank = Rank1
		pushDir = -8
	}

	if quiets {
		nonPromo := push1 & ^promotionRank
		for nonPromo != 0 {
			to := nonPromo.PopLSB()
			ml.Add(NewMove(Square(int(to)-pushDir), to))
		}
		for push2 != 0 {
			to := push2.PopLSB()
			ml.Add(NewDoublePush(Square(int(to)-2*pushDir), to))
		}
	}

	if captures {
		nonPromoL := attackL & ^promotionRank
		for nonPromoL != 0 {
			to := nonPromoL.PopLSB()
			ml.Add(NewCapture(Square(int(to)-pushDir+1), to))
		}
		nonPromoR := attackR & ^promotionRank
		for nonPromoR != 0 {
			to := nonPromoR.PopLSB()
			ml.Add(NewCapture(Square(int(to)-pushDir-1), to))
		}

		// Promotions are generated in the captures-and-promotions pass even
		// when it's the non-capturing push that promotes, so that quiescence
		// search (which only requests GenCapturesAndPromotions) still sees
		// promoting pushes; the quiets pass never generates them.
		promoPush := push1 & promotionRank
		for promoPush != 0 {
			to := promoPush.PopLSB()
			addPromotions(ml, Square(int(to)-pushDir), to, false)
		}
		promoL := attackL & promotionRank
		for promoL != 0 {
			to := promoL.PopLSB()
			addPromotions(ml, Square(int(to)-pushDir+1), to, true)
		}
		promoR := attackR & promotionRank
		for promoR != 0 {
			to := promoR.PopLSB()
			addPromotions(ml, Square(int(to)-pushDir-1), to, true)
		}

		if st.EnPassant != NoSquare {
			epBB := SquareBB(st.EnPassant)
			var epAttackers Bitboard
			if us == White {
				epAttackers = (epBB.SouthWest() | epBB.SouthEast()) & pawns
			} else {
				epAttackers = (epBB.NorthWest() | epBB.NorthEast()) & pawns
			}
			for epAttackers != 0 {
				ml.Add(NewEnPassant(epAttackers.PopLSB(), st.EnPassant))
			}
		}
	}
}

func addPromotions(ml *ScoredMoveList, from, to Square, capture bool) {
	if capture {
		ml.Add(NewCapturePromotion(from, to, Queen))
		ml.Add(NewCapturePromotion(from, to, Rook))
		ml.Add(NewCapturePromotion(from, to, Bishop))
		ml.Add(NewCapturePromotion(from, to, Knight))
		return
	}
	ml.Add(NewPromotion(from, to, Queen))
	ml.Add(NewPromotion(from, to, Rook))
	ml.Add(NewPromotion(from, to, Bishop))
	ml.Add(NewPromotion(from, to, Knight))
}

// generateCastlingMoves generates pseudo-legal castling moves, supporting
// both orthodox and Chess960 rook placements (spec.md §4.B): the king and
// castling rook's paths must be clear of every OTHER piece, and no square
// the king passes through (including its origin and destination) may be
// attacked.
func (b *Board) generateCastlingMoves(ml *ScoredMoveList, us Color) {
	st := &b.st
	them := us.Other()
	kingFrom := st.KingSquare[us]

	for _, kingSide := range [2]bool{true, false} {
		if !st.Rights.Has(us, kingSide) {
			continue
		}
		rookFile := st.Rights.RookFile(us, kingSide)
		rookFrom := NewSquare(rookFile, kingFrom.Rank())

		kingTo := NewSquare(6, kingFrom.Rank())
		rookTo := NewSquare(5, kingFrom.Rank())
		if !kingSide {
			kingTo = NewSquare(2, kingFrom.Rank())
			rookTo = NewSquare(3, kingFrom.Rank())
		}

		occupiedWithout := st.AllOccupied &^ SquareBB(kingFrom) &^ SquareBB(rookFrom)
		kingPath := squaresBetweenInclusive(kingFrom, kingTo)
		rookPath := squaresBetweenInclusive(rookFrom, rookTo)
		if (kingPath|rookPath)&occupiedWithout != 0 {
			continue
		}

		attacked := false
		path := kingPath
		for path != 0 {
			sq := path.PopLSB()
			if attackersOf(st.Pieces, st.AllOccupied&^SquareBB(kingFrom), sq, them) != 0 {
				attacked = true
				break
			}
		}
		if attacked {
			continue
		}

		// Chess960 additionally forbids castling with a rook that is
		// currently pinned to our own king: the rook's square can lie off
		// the king's own path, so the ordinary king-path-attacked test
		// above doesn't catch it (spec.md §4.B).
		if b.chess960 && st.Pinned[us]&SquareBB(rookFrom) != 0 {
			continue
		}

		ml.Add(NewCastling(kingFrom, rookFrom))
	}
}

func squaresBetweenInclusive(a, b Square) Bitboard {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	bb := Between(lo, hi) | SquareBB(a) | SquareBB(b)
	return bb
}

// IsPseudoLegal reports whether m could be generated in the current
// position without running full move generation — used by the TT move and
// killer/counter-move slots of the staged picker, which must re-validate a
// cached move cheaply before trying it (spec.md §4.C).
func (b *Board) IsPseudoLegal(m Move) bool {
	st := &b.st
	us := st.SideToMove
	from, to := m.From(), m.To()
	piece := st.PieceAt(from)
	if piece == NoPiece || piece.Color() != us {
		return false
	}

	if m.IsCastling() {
		rook := st.PieceAt(to)
		if piece.Type() != King || rook.Type() != Rook || rook.Color() != us {
			return false
		}
		kingSide := to.File() > from.File()
		return st.Rights.Has(us, kingSide) && st.Rights.RookFile(us, kingSide) == to.File() && castlingPathClear(b, us, kingSide)
	}

	dstPiece := st.PieceAt(to)
	if dstPiece != NoPiece && dstPiece.Color() == us {
		return false
	}
	if piece.Type() != Pawn && (m.IsPromotion() || m.IsDoublePush() || m.IsEnPassant()) {
		return false
	}
	if !m.IsEnPassant() && m.IsCapture() != (dstPiece != NoPiece) {
		return false
	}

	switch piece.Type() {
	case Pawn:
		return isPseudoLegalPawnMove(st, us, from, to, m)
	case Knight:
		return knightAttacks[from]&SquareBB(to) != 0
	case Bishop:
		return BishopAttacks(from, st.AllOccupied)&SquareBB(to) != 0
	case Rook:
		return RookAttacks(from, st.AllOccupied)&SquareBB(to) != 0
	case Queen:
		return QueenAttacks(from, st.AllOccupied)&SquareBB(to) != 0
	case King:
		return kingAttacks[from]&SquareBB(to) != 0
	}
	return false
}

func castlingPathClear(b *Board, us Color, kingSide bool) bool {
	ml := NewMoveList()
	b.generateCastlingMoves(ml, us)
	target := NewSquare(b.st.Rights.RookFile(us, kingSide), b.st.KingSquare[us].Rank())
	for i := 0; i < ml.Len(); i++ {
		if ml.Get(i).To() == target {
			return true
		}
	}
	return false
}

func isPseudoLegalPawnMove(st *State, us Color, from, to Square, m Move) bool {
	dir := 8
	startRank, promoRank := 1, 7
	if us == Black {
		dir = -8
		startRank, promoRank = 6, 0
	}
	diff := int(to) - int(from)

	if m.IsDoublePush() {
		return from.Rank() == startRank && diff == 2*dir && st.IsEmpty(Square(int(from)+dir)) && st.IsEmpty(to)
	}
	if m.IsEnPassant() {
		return to == st.EnPassant && pawnAttacks[us][from]&SquareBB(to) != 0
	}
	if (to.Rank() == promoRank) != m.IsPromotion() {
		return false
	}
	if diff == dir {
		return st.IsEmpty(to)
	}
	return pawnAttacks[us][from]&SquareBB(to) != 0 && !st.IsEmpty(to)
}

// IsLegal reports whether a pseudo-legal move leaves the mover's own king in
// check, using the classical fast test rather than make/unmake (spec.md
// §4.B): king moves check the destination isn't attacked once the king is
// removed from the occupancy; castling has already been fully validated by
// generation; every other move only needs checking when the side to move is
// in check, the piece is pinned, or the move is an en passant capture that
// could expose a horizontal pin.
func (b *Board) IsLegal(m Move) bool {
	st := &b.st
	us := st.SideToMove
	them := us.Other()
	from := m.From()
	ksq := st.KingSquare[us]

	if m.IsCastling() {
		return true
	}

	if from == ksq {
		occ := st.AllOccupied &^ SquareBB(from)
		return attackersOf(st.Pieces, occ, m.To(), them) == 0
	}

	if st.InCheck() {
		if st.Threats.Checkers.PopCount() > 1 {
			return false
		}
		checker := st.Threats.Checkers.LSB()
		blockOrCapture := Between(checker, ksq) | SquareBB(checker)
		target := SquareBB(m.To())
		if m.IsEnPassant() {
			target |= SquareBB(NewSquare(m.To().File(), m.From().Rank()))
		}
		if blockOrCapture&target == 0 {
			return false
		}
	}

	if m.IsEnPassant() {
		return enPassantIsLegal(st, us, m)
	}

	if st.Pinned[us]&SquareBB(from) != 0 {
		return Aligned(from, m.To(), ksq)
	}

	return true
}

// enPassantIsLegal handles the rare case where removing both the capturing
// pawn and the captured pawn exposes the king to a horizontal slider attack
// along the vacated rank.
func enPassantIsLegal(st *State, us Color, m Move) bool {
	them := us.Other()
	capSq := NewSquare(m.To().File(), m.From().Rank())
	occ := st.AllOccupied &^ SquareBB(m.From()) &^ SquareBB(capSq) | SquareBB(m.To())
	ksq := st.KingSquare[us]
	rooksQueens := st.Pieces[them][Rook] | st.Pieces[them][Queen]
	if RookAttacks(ksq, occ)&rooksQueens != 0 {
		return false
	}
	bishopsQueens := st.Pieces[them][Bishop] | st.Pieces[them][Queen]
	if BishopAttacks(ksq, occ)&bishopsQueens != 0 {
		return false
	}
	return true
}

// HasLegalMoves reports whether the side to move has any legal move.
func (b *Board) HasLegalMoves() bool {
	ml := NewMoveList()
	b.GenerateMoves(GenAll, ml)
	for i := 0; i < ml.Len(); i++ {
		if b.IsLegal(ml.Get(i)) {
			return true
		}
	}
	return false
}

// IsCheckmate reports whether the side to move is checkmated.
func (b *Board) IsCheckmate() bool {
	return b.InCheck() && !b.HasLegalMoves()
}

// IsStalemate reports whether the side to move is stalemated.
func (b *Board) IsStalemate() bool {
	return !b.InCheck() && !b.HasLegalMoves()
}
