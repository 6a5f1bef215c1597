package board

// CastlingRights records, for each of the four rights, either "absent" or
// the file the relevant rook sits on. The standard KQkq mapping is the
// special case where White's rooks are on files A and H (and likewise for
// Black); Chess960 positions may have the rooks on any file, so each right
// is stored as a file rather than a single presence bit.
//
// Each entry uses 0-7 for a real file and noRookFile to mean "this right
// does not exist".
const noRookFile = 8

type CastlingRights struct {
	// [color][kingSide?0:1] -> rook file, or noRookFile if absent.
	rookFile [2][2]uint8
}

const (
	castleKingSide  = 0
	castleQueenSide = 1
)

// NoCastling holds no rights in any direction. It is not the zero
// CastlingRights value, whose entries read as rooks on file A.
var NoCastling = CastlingRights{rookFile: [2][2]uint8{
	{noRookFile, noRookFile},
	{noRookFile, noRookFile},
}}

// NewStandardCastlingRights builds the orthodox KQkq rights: rooks on
// files A (queenside) and H (kingside) for both colors.
func NewStandardCastlingRights() CastlingRights {
	cr := NoCastling
	cr.Set(White, true, 7)
	cr.Set(White, false, 0)
	cr.Set(Black, true, 7)
	cr.Set(Black, false, 0)
	return cr
}

// Set records (or clears, if file == noRookFile) the rook file for a right.
func (cr *CastlingRights) Set(c Color, kingSide bool, file int) {
	idx := castleQueenSide
	if kingSide {
		idx = castleKingSide
	}
	cr.rookFile[c][idx] = uint8(file)
}

// Clear removes a single right.
func (cr *CastlingRights) Clear(c Color, kingSide bool) {
	idx := castleQueenSide
	if kingSide {
		idx = castleKingSide
	}
	cr.rookFile[c][idx] = noRookFile
}

// ClearColor removes both rights for a color (king moved).
func (cr *CastlingRights) ClearColor(c Color) {
	cr.rookFile[c][0] = noRookFile
	cr.rookFile[c][1] = noRookFile
}

// Has reports whether the given right is present.
func (cr CastlingRights) Has(c Color, kingSide bool) bool {
	idx := castleQueenSide
	if kingSide {
		idx = castleKingSide
	}
	return cr.rookFile[c][idx] != noRookFile
}

// RookFile returns the file the castling rook sits on for a right. Only
// meaningful when Has(c, kingSide) is true.
func (cr CastlingRights) RookFile(c Color, kingSide bool) int {
	idx := castleQueenSide
	if kingSide {
		idx = castleKingSide
	}
	return int(cr.rookFile[c][idx])
}

// presenceMask derives the 4-bit mask used for Zobrist indexing: bit 0=WK,
// 1=WQ, 2=BK, 3=BQ, matching the standard KQkq bit order regardless of
// which file the Chess960 rook actually sits on (only presence matters for
// hashing; the file is determined by the starting position and constant
// for the whole game).
func (cr CastlingRights) presenceMask() uint8 {
	var m uint8
	if cr.Has(White, true) {
		m |= 1 << 0
	}
	if cr.Has(White, false) {
		m |= 1 << 1
	}
	if cr.Has(Black, true) {
		m |= 1 << 2
	}
	if cr.Has(Black, false) {
		m |= 1 << 3
	}
	return m
}

// String renders standard KQkq letters when the rook files match the
// orthodox A/H mapping, else Shredder-FEN per-file letters (§4.B).
func (cr CastlingRights) String() string {
	if cr == NoCastling {
		return "-"
	}
	if cr.isStandardShape() {
		s := ""
		if cr.Has(White, true) {
			s += "K"
		}
		if cr.Has(White, false) {
			s += "Q"
		}
		if cr.Has(Black, true) {
			s += "k"
		}
		if cr.Has(Black, false) {
			s += "q"
		}
		return s
	}
	s := ""
	if cr.Has(White, true) {
		s += string(rune('A' + cr.RookFile(White, true)))
	}
	if cr.Has(White, false) {
		s += string(rune('A' + cr.RookFile(White, false)))
	}
	if cr.Has(Black, true) {
		s += string(rune('a' + cr.RookFile(Black, true)))
	}
	if cr.Has(Black, false) {
		s += string(rune('a' + cr.RookFile(Black, false)))
	}
	return s
}

func (cr CastlingRights) isStandardShape() bool {
	ok := func(c Color, kingSide bool, file int) bool {
		return !cr.Has(c, kingSide) || cr.RookFile(c, kingSide) == file
	}
	return ok(White, true, 7) && ok(White, false, 0) && ok(Black, true, 7) && ok(Black, false, 0)
}
