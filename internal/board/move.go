package board

import "fmt"

// Move encodes a chess move in 16 bits: from:6, to:6, flags:4.
//
// Castling is encoded king-captures-own-rook: From is the king's square,
// To is the square of the rook it is castling with. This single encoding
// covers both orthodox chess (rooks always on A/H) and Chess960 (rooks on
// arbitrary files) without a separate code path; only the UCI display layer
// translates it to the conventional king-to-G/C notation when the engine is
// not running in Chess960 mode (spec.md §3, §9).
type Move uint16

// Move flags (bits 12-15). The high bit (8) marks captures; promotion flags
// occupy the low 3 bits and are reused, OR'd with the capture bit, for
// capturing promotions.
const (
	FlagQuiet         uint16 = 0
	FlagDoublePush    uint16 = 1
	FlagCastle        uint16 = 2
	FlagEnPassant     uint16 = 3
	FlagPromoKnight   uint16 = 4
	FlagPromoBishop   uint16 = 5
	FlagPromoRook     uint16 = 6
	FlagPromoQueen    uint16 = 7
	FlagCapture       uint16 = 8
	flagCapturePromo  uint16 = 12 // base; +0..3 for N,B,R,Q
)

// NoMove is a distinct value representing "no move" / a null move marker
// used outside of MakeNullMove (which operates on the position directly).
const NoMove Move = 0

func encode(from, to Square, flag uint16) Move {
	return Move(from) | Move(to)<<6 | Move(flag)<<12
}

// NewMove creates a plain, non-capturing, non-special move.
func NewMove(from, to Square) Move {
	return encode(from, to, FlagQuiet)
}

// NewCapture creates a plain capturing move.
func NewCapture(from, to Square) Move {
	return encode(from, to, FlagCapture)
}

// NewDoublePush creates a pawn double-push move.
func NewDoublePush(from, to Square) Move {
	return encode(from, to, FlagDoublePush)
}

// NewPromotion creates a non-capturing promotion move.
func NewPromotion(from, to Square, promo PieceType) Move {
	return encode(from, to, promoFlag(promo))
}

// NewCapturePromotion creates a capturing promotion move.
func NewCapturePromotion(from, to Square, promo PieceType) Move {
	return encode(from, to, flagCapturePromo+(promoFlag(promo)-FlagPromoKnight))
}

// NewEnPassant creates an en passant capture move.
func NewEnPassant(from, to Square) Move {
	return encode(from, to, FlagEnPassant)
}

// NewCastling creates a castling move; to is the ROOK's square (see the
// king-captures-rook encoding note on Move).
func NewCastling(from, rookSquare Square) Move {
	return encode(from, rookSquare, FlagCastle)
}

func promoFlag(pt PieceType) uint16 {
	switch pt {
	case Knight:
		return FlagPromoKnight
	case Bishop:
		return FlagPromoBishop
	case Rook:
		return FlagPromoRook
	default:
		return FlagPromoQueen
	}
}

// From returns the origin square (the king's square for castling).
func (m Move) From() Square {
	return Square(m & 0x3F)
}

// To returns the destination square (the ROOK's square for castling).
func (m Move) To() Square {
	return Square((m >> 6) & 0x3F)
}

// Flag returns the raw 4-bit flag.
func (m Move) Flag() uint16 {
	return uint16(m>>12) & 0xF
}

// IsPromotion reports whether this move promotes a pawn (capturing or not).
func (m Move) IsPromotion() bool {
	f := m.Flag()
	return (f >= FlagPromoKnight && f <= FlagPromoQueen) || f >= flagCapturePromo
}

// Promotion returns the promoted-to piece type; only valid if IsPromotion().
func (m Move) Promotion() PieceType {
	f := m.Flag()
	if f >= flagCapturePromo {
		f = f - flagCapturePromo + FlagPromoKnight
	}
	return Knight + PieceType(f-FlagPromoKnight)
}

// IsCastling reports whether this move is a castle (king-captures-rook encoding).
func (m Move) IsCastling() bool {
	return m.Flag() == FlagCastle
}

// IsEnPassant reports whether this move is an en passant capture.
func (m Move) IsEnPassant() bool {
	return m.Flag() == FlagEnPassant
}

// IsDoublePush reports whether this move is a pawn double push.
func (m Move) IsDoublePush() bool {
	return m.Flag() == FlagDoublePush
}

// IsCapture reports whether the move's flag marks it a capture. This is a
// pure function of the encoded move (the capture bit is set at generation
// time); en passant is a capture even though its own flag doesn't carry the
// capture bit.
func (m Move) IsCapture() bool {
	return m.Flag()&FlagCapture != 0 || m.IsEnPassant()
}

// IsQuiet reports whether the move is neither a capture nor a promotion.
func (m Move) IsQuiet() bool {
	return !m.IsCapture() && !m.IsPromotion()
}

// String returns the UCI representation. Castling is rendered in its raw
// king-captures-rook form here; frontends needing G-/C-file notation for
// non-Chess960 display must translate explicitly (spec.md §3, §6).
func (m Move) String() string {
	if m == NoMove {
		return "0000"
	}
	s := m.From().String() + m.To().String()
	if m.IsPromotion() {
		promoChars := "nbrq"
		s += string(promoChars[m.Promotion()-Knight])
	}
	return s
}

// ParseMove parses a UCI move string against the current position,
// accepting both standard castling (e1g1) and Chess960/king-captures-rook
// castling (e1h1) encodings, per spec.md §6.
func ParseMove(s string, b *Board) (Move, error) {
	if len(s) < 4 {
		return NoMove, fmt.Errorf("invalid move string: %q", s)
	}
	from, err := ParseSquare(s[0:2])
	if err != nil {
		return NoMove, err
	}
	to, err := ParseSquare(s[2:4])
	if err != nil {
		return NoMove, err
	}

	st := &b.st
	piece := st.PieceAt(from)
	if piece == NoPiece {
		return NoMove, fmt.Errorf("no piece on %s", from)
	}
	pt := piece.Type()
	us := piece.Color()

	if len(s) == 5 {
		var promo PieceType
		switch s[4] {
		case 'n':
			promo = Knight
		case 'b':
			promo = Bishop
		case 'r':
			promo = Rook
		case 'q':
			promo = Queen
		default:
			return NoMove, fmt.Errorf("invalid promotion piece: %c", s[4])
		}
		if st.PieceAt(to) != NoPiece {
			return NewCapturePromotion(from, to, promo), nil
		}
		return NewPromotion(from, to, promo), nil
	}

	if pt == King {
		// Chess960 king-captures-rook notation: destination is a friendly rook.
		if dst := st.PieceAt(to); dst != NoPiece && dst.Color() == us && dst.Type() == Rook {
			return NewCastling(from, to), nil
		}
		// Standard notation: king moves two files onto the known rook file.
		if abs(to.File()-from.File()) == 2 && to.Rank() == from.Rank() {
			kingSide := to.File() > from.File()
			if st.Rights.Has(us, kingSide) {
				rookFile := st.Rights.RookFile(us, kingSide)
				return NewCastling(from, NewSquare(rookFile, from.Rank())), nil
			}
		}
	}

	if pt == Pawn {
		if to == st.EnPassant {
			return NewEnPassant(from, to), nil
		}
		if abs(to.Rank()-from.Rank()) == 2 {
			return NewDoublePush(from, to), nil
		}
	}

	if st.PieceAt(to) != NoPiece {
		return NewCapture(from, to), nil
	}
	return NewMove(from, to), nil
}

// ScoredMoveList is a fixed-size small-vector of (Move, score) pairs, sized
// to the engine's maximum branching factor. Scores are filled in lazily by
// the staged move picker (spec.md §4.C); generation itself leaves them zero.
type ScoredMoveList struct {
	moves  [256]Move
	scores [256]int32
	count  int
}

// NewMoveList creates an empty move list.
func NewMoveList() *ScoredMoveList {
	return &ScoredMoveList{}
}

// Add appends a move with a zero score.
func (ml *ScoredMoveList) Add(m Move) {
	ml.moves[ml.count] = m
	ml.count++
}

// AddScored appends a move with an explicit ordering score.
func (ml *ScoredMoveList) AddScored(m Move, score int32) {
	ml.moves[ml.count] = m
	ml.scores[ml.count] = score
	ml.count++
}

// Len returns the number of moves in the list.
func (ml *ScoredMoveList) Len() int { return ml.count }

// Get returns the move at index i.
func (ml *ScoredMoveList) Get(i int) Move { return ml.moves[i] }

// Score returns the ordering score at index i.
func (ml *ScoredMoveList) Score(i int) int32 { return ml.scores[i] }

// SetScore sets the ordering score at index i.
func (ml *ScoredMoveList) SetScore(i int, score int32) { ml.scores[i] = score }

// Swap exchanges the (move, score) pair at i and j.
func (ml *ScoredMoveList) Swap(i, j int) {
	ml.moves[i], ml.moves[j] = ml.moves[j], ml.moves[i]
	ml.scores[i], ml.scores[j] = ml.scores[j], ml.scores[i]
}

// Clear empties the list without reallocating.
func (ml *ScoredMoveList) Clear() { ml.count = 0 }

// Contains reports whether m is present in the list.
func (ml *ScoredMoveList) Contains(m Move) bool {
	for i := 0; i < ml.count; i++ {
		if ml.moves[i] == m {
			return true
		}
	}
	return false
}

// Slice returns the moves (without scores) as a slice.
func (ml *ScoredMoveList) Slice() []Move { return ml.moves[:ml.count] }

// PickBest moves the highest-scored move at index >= from to index `from`
// and returns it; used by the staged picker's selection-sort-style draw.
func (ml *ScoredMoveList) PickBest(from int) Move {
	best := from
	for i := from + 1; i < ml.count; i++ {
		if ml.scores[i] > ml.scores[best] {
			best = i
		}
	}
	ml.Swap(from, best)
	return ml.moves[from]
}
