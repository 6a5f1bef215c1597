package board

import (
	"fmt"
	"strconv"
	"strings"
)

// StartFEN is the FEN string for the standard starting position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// SetFEN parses fen and replaces the board's live state, clearing history
// (a FEN load establishes a new game root; spec.md §6).
func (b *Board) SetFEN(fen string) error {
	st, err := parseFEN(fen, b.chess960)
	if err != nil {
		return err
	}
	b.st = st
	b.history = b.history[:0]
	b.ply = 0
	b.gamePly = 0
	return nil
}

// FEN returns the current position in FEN notation — orthodox KQkq castling
// letters when every castling rook is on the A or H file, Shredder-FEN
// per-file letters otherwise (spec.md §6). The board's Chess960 mode does
// not affect the output: a Chess960 position whose rooks start on A and H
// is written with KQkq.
func (b *Board) FEN() string {
	return stateToFEN(&b.st)
}

func parseFEN(fen string, chess960 bool) (State, error) {
	parts := strings.Fields(fen)
	if len(parts) < 4 {
		return State{}, fmt.Errorf("invalid FEN: need at least 4 fields, got %d", len(parts))
	}

	st := emptyState()

	if err := parsePiecePlacement(&st, parts[0]); err != nil {
		return State{}, err
	}

	switch parts[1] {
	case "w":
		st.SideToMove = White
	case "b":
		st.SideToMove = Black
	default:
		return State{}, fmt.Errorf("invalid side to move: %s", parts[1])
	}

	rights, err := parseCastlingRights(&st, parts[2], chess960)
	if err != nil {
		return State{}, err
	}
	st.Rights = rights

	if parts[3] != "-" {
		sq, err := ParseSquare(parts[3])
		if err != nil {
			return State{}, fmt.Errorf("invalid en passant square: %s", parts[3])
		}
		st.EnPassant = sq
	}

	if len(parts) > 4 {
		hmc, err := strconv.Atoi(parts[4])
		if err != nil {
			return State{}, fmt.Errorf("invalid half-move clock: %s", parts[4])
		}
		st.HalfMoveClock = hmc
	}
	if len(parts) > 5 {
		fmn, err := strconv.Atoi(parts[5])
		if err != nil {
			return State{}, fmt.Errorf("invalid full-move number: %s", parts[5])
		}
		st.FullMoveNumber = fmn
	}

	st.Keys = computeKeys(st.Pieces, st.SideToMove, st.Rights, st.EnPassant)
	st.recomputeThreatsAndPins()

	return st, nil
}

func parsePiecePlacement(st *State, placement string) error {
	ranks := strings.Split(placement, "/")
	if len(ranks) != 8 {
		return fmt.Errorf("invalid piece placement: need 8 ranks, got %d", len(ranks))
	}

	for i, rankStr := range ranks {
		rank := 7 - i
		file := 0

		for _, c := range rankStr {
			if file > 7 {
				return fmt.Errorf("too many squares in rank %d", rank+1)
			}
			if c >= '1' && c <= '8' {
				file += int(c - '0')
				continue
			}
			piece := PieceFromChar(byte(c))
			if piece == NoPiece {
				return fmt.Errorf("invalid piece character: %c", c)
			}
			st.setPiece(piece, NewSquare(file, rank))
			file++
		}

		if file != 8 {
			return fmt.Errorf("invalid number of squares in rank %d: got %d", rank+1, file)
		}
	}

	return nil
}

// parseCastlingRights accepts orthodox KQkq letters as well as Shredder-FEN
// per-file letters (A-H / a-h), locating the rook on the named file next to
// the king on that color's back rank, per spec.md §4.B.
func parseCastlingRights(st *State, castling string, chess960 bool) (CastlingRights, error) {
	cr := NoCastling
	if castling == "-" {
		return cr, nil
	}

	for _, ch := range castling {
		switch ch {
		case 'K', 'Q', 'k', 'q':
			c := White
			kingSide := ch == 'K'
			if ch == 'k' || ch == 'q' {
				c = Black
				kingSide = ch == 'k'
			}
			file, err := defaultRookFile(st, c, kingSide)
			if err != nil {
				return cr, err
			}
			cr.Set(c, kingSide, file)
		default:
			var c Color
			var file int
			if ch >= 'A' && ch <= 'H' {
				c, file = White, int(ch-'A')
			} else if ch >= 'a' && ch <= 'h' {
				c, file = Black, int(ch-'a')
			} else {
				return cr, fmt.Errorf("invalid castling character: %c", ch)
			}
			kingSide := file > st.KingSquare[c].File()
			cr.Set(c, kingSide, file)
		}
	}

	return cr, nil
}

// defaultRookFile locates the outermost rook on color c's home rank on the
// named side, for orthodox KQkq letters (which carry no file information of
// their own — Chess960 positions loaded via Shredder-FEN always use the
// explicit per-file letters instead).
func defaultRookFile(st *State, c Color, kingSide bool) (int, error) {
	rank := homeRank(c)
	kingFile := st.KingSquare[c].File()
	best := -1
	for file := 0; file < 8; file++ {
		sq := NewSquare(file, rank)
		p := st.PieceAt(sq)
		if p.Type() != Rook || p.Color() != c {
			continue
		}
		if kingSide && file > kingFile {
			if best == -1 || file > best {
				best = file
			}
		}
		if !kingSide && file < kingFile {
			if best == -1 || file < best {
				best = file
			}
		}
	}
	if best == -1 {
		return 0, fmt.Errorf("no rook found for castling right on %s side", sideName(kingSide))
	}
	return best, nil
}

func sideName(kingSide bool) string {
	if kingSide {
		return "king"
	}
	return "queen"
}

func stateToFEN(st *State) string {
	var sb strings.Builder

	for rank := 7; rank >= 0; rank-- {
		empty := 0
		for file := 0; file < 8; file++ {
			sq := NewSquare(file, rank)
			piece := st.PieceAt(sq)
			if piece == NoPiece {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteString(strconv.Itoa(empty))
				empty = 0
			}
			sb.WriteString(piece.String())
		}
		if empty > 0 {
			sb.WriteString(strconv.Itoa(empty))
		}
		if rank > 0 {
			sb.WriteByte('/')
		}
	}

	sb.WriteByte(' ')
	if st.SideToMove == White {
		sb.WriteByte('w')
	} else {
		sb.WriteByte('b')
	}

	sb.WriteByte(' ')
	sb.WriteString(st.Rights.String())

	sb.WriteByte(' ')
	sb.WriteString(st.EnPassant.String())

	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(st.HalfMoveClock))
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(st.FullMoveNumber))

	return sb.String()
}
