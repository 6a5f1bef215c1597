package board

import "testing"

// perft counts the leaf nodes at the given depth, the standard way to
// cross-check move generation and make/unmake correctness.
func perft(b *Board, depth int) int64 {
	if depth == 0 {
		return 1
	}

	moves := b.GenerateLegalMoves()
	if depth == 1 {
		return int64(moves.Len())
	}

	var nodes int64
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		if !b.MakeMove(m, nil) {
			continue
		}
		nodes += perft(b, depth-1)
		b.UnmakeMove()
	}
	return nodes
}

func newBoardFromFEN(t *testing.T, fen string) *Board {
	t.Helper()
	b := &Board{}
	if err := b.SetFEN(fen); err != nil {
		t.Fatalf("failed to parse FEN %q: %v", fen, err)
	}
	return b
}

func TestPerftStartingPosition(t *testing.T) {
	b := NewBoard()

	tests := []struct {
		depth    int
		expected int64
	}{
		{1, 20},
		{2, 400},
		{3, 8902},
		{4, 197281},
	}

	for _, tc := range tests {
		t.Run("", func(t *testing.T) {
			if got := perft(b, tc.depth); got != tc.expected {
				t.Errorf("perft(%d) = %d, want %d", tc.depth, got, tc.expected)
			}
		})
	}
}

// TestPerftKiwipete covers castling, captures, promotions and checks.
func TestPerftKiwipete(t *testing.T) {
	b := newBoardFromFEN(t, "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1")

	tests := []struct {
		depth    int
		expected int64
	}{
		{1, 48},
		{2, 2039},
		{3, 97862},
	}

	for _, tc := range tests {
		t.Run("", func(t *testing.T) {
			if got := perft(b, tc.depth); got != tc.expected {
				t.Errorf("perft(%d) = %d, want %d", tc.depth, got, tc.expected)
			}
		})
	}
}

// TestPerftPosition3 exercises en passant, pawn promotion and pin edge cases.
func TestPerftPosition3(t *testing.T) {
	b := newBoardFromFEN(t, "8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1")

	tests := []struct {
		depth    int
		expected int64
	}{
		{1, 14},
		{2, 191},
		{3, 2812},
		{4, 43238},
	}

	for _, tc := range tests {
		t.Run("", func(t *testing.T) {
			if got := perft(b, tc.depth); got != tc.expected {
				t.Errorf("perft(%d) = %d, want %d", tc.depth, got, tc.expected)
			}
		})
	}
}

// TestPerftEnPassantPin covers the horizontal-pin en passant edge case: the
// black pawn on e4 cannot capture en passant on d3 because doing so would
// expose the black king on a4 to the white rook on h4 along rank 4.
func TestPerftEnPassantPin(t *testing.T) {
	b := newBoardFromFEN(t, "8/8/8/8/k2Pp2R/8/8/4K3 b - d3 0 1")

	moves := b.GenerateLegalMoves()
	for i := 0; i < moves.Len(); i++ {
		if m := moves.Get(i); m.IsEnPassant() {
			t.Errorf("en passant move %v should be illegal (horizontal pin)", m)
		}
	}

	tests := []struct {
		depth    int
		expected int64
	}{
		{1, 6},
		{2, 94},
	}

	for _, tc := range tests {
		t.Run("", func(t *testing.T) {
			if got := perft(b, tc.depth); got != tc.expected {
				t.Errorf("perft(%d) = %d, want %d", tc.depth, got, tc.expected)
			}
		})
	}
}

// TestPerftChess960Castling exercises the king-captures-rook encoding against
// a Chess960 position with a rook adjacent to the king on each side.
// Rather than asserting a specific node count (easy to get wrong by hand for
// a non-standard setup), this checks perft(2) is consistent with summing
// perft(1) over every depth-1 reply, and that a castling move is actually
// produced (every square the king and rooks pass through is empty here).
func TestPerftChess960Castling(t *testing.T) {
	b := &Board{chess960: true}
	if err := b.SetFEN("2rkr3/pppppppp/8/8/8/8/PPPPPPPP/2RKR3 w KQkq - 0 1"); err != nil {
		t.Fatalf("failed to parse Chess960 FEN: %v", err)
	}

	root := b.GenerateLegalMoves()
	sawCastle := false
	var sum int64
	for i := 0; i < root.Len(); i++ {
		m := root.Get(i)
		if m.IsCastling() {
			sawCastle = true
		}
		if !b.MakeMove(m, nil) {
			continue
		}
		sum += perft(b, 1)
		b.UnmakeMove()
	}
	if !sawCastle {
		t.Errorf("expected at least one castling move from the adjacent-rook Chess960 setup")
	}
	if got := perft(b, 2); got != sum {
		t.Errorf("perft(2) = %d, want %d (sum of perft(1) over root moves)", got, sum)
	}
}
