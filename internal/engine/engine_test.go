package engine

import (
	"testing"
	"time"

	"github.com/hailam/chessplay/internal/board"
)

func newBoardFromFEN(t *testing.T, fen string) *board.Board {
	t.Helper()
	b := board.NewBoard()
	if err := b.SetFEN(fen); err != nil {
		t.Fatalf("invalid FEN %q: %v", fen, err)
	}
	return b
}

func TestMultiPV(t *testing.T) {
	b := board.NewBoard()
	eng := NewEngine(16)

	limits := SearchLimits{
		Depth:    4,
		MoveTime: 2 * time.Second,
		MultiPV:  3,
	}

	results := eng.SearchMultiPV(b, limits)

	if len(results) < 2 {
		t.Fatalf("Expected at least 2 PVs, got %d", len(results))
	}

	if results[0].Move == results[1].Move {
		t.Errorf("First two PVs have same move: %s", results[0].Move.String())
	}

	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("PV %d has higher score than PV %d (%d > %d)",
				i+1, i, results[i].Score, results[i-1].Score)
		}
	}
}

func TestSearchBasic(t *testing.T) {
	b := board.NewBoard()
	eng := NewEngine(16)
	eng.SetDifficulty(Easy)

	move := eng.Search(b)
	if move == board.NoMove {
		t.Error("Search returned NoMove for starting position")
	}
}

// TestConcurrentSearchRace stress-tests the Lazy-SMP pool for data races.
// Run with: go test -race -run TestConcurrentSearchRace ./internal/engine -v
func TestConcurrentSearchRace(t *testing.T) {
	eng := NewEngine(16)

	iterations := 10
	if testing.Short() {
		iterations = 3
	}

	fens := []string{
		board.StartFEN,
		"rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq e6 0 2",
		"rnbqkbnr/ppp1pppp/8/3p4/3P4/8/PPP1PPPP/RNBQKBNR w KQkq d6 0 2",
	}

	for i := 0; i < iterations; i++ {
		b := newBoardFromFEN(t, fens[i%len(fens)])

		limits := SearchLimits{
			Depth:    6,
			MoveTime: 500 * time.Millisecond,
		}

		move := eng.SearchWithLimits(b, limits)
		if move == board.NoMove {
			t.Errorf("Iteration %d: Search returned NoMove for starting position", i)
		}
	}
}

// TestConcurrentSearchMultiplePositions searches several distinct positions
// in turn through the same Engine/pool.
func TestConcurrentSearchMultiplePositions(t *testing.T) {
	eng := NewEngine(16)

	positions := []string{
		board.StartFEN,
		"r1bqkbnr/pppp1ppp/2n5/4p3/2B1P3/5N2/PPPP1PPP/RNBQK2R b KQkq - 3 3", // Italian Game
		"8/8/8/4k3/8/4K3/4P3/8 w - - 0 1",                                  // KP endgame
	}

	for i, fen := range positions {
		b := newBoardFromFEN(t, fen)

		limits := SearchLimits{
			Depth:    5,
			MoveTime: 300 * time.Millisecond,
		}

		move := eng.SearchWithLimits(b, limits)
		if move == board.NoMove {
			if !b.InCheck() || b.GenerateLegalMoves().Len() > 0 {
				t.Errorf("Position %d: Search returned NoMove", i)
			}
		}
	}
}

func TestPawnHashTable(t *testing.T) {
	pt := NewPawnTable(1) // 1MB
	b := board.NewBoard()

	phase := gamePhase(b.State())
	_ = PawnHint(b.State(), pt, phase)

	key := b.State().Keys.Pawn
	if _, _, found := pt.probe(key); !found {
		t.Error("Expected cache hit after PawnHint populated the table")
	}

	var ub board.UpdateBuffer
	oldKey := key
	move := board.NewMove(board.E2, board.E4)
	if !b.MakeMove(move, &ub) {
		t.Fatal("e2e4 should be legal from the starting position")
	}
	if b.State().Keys.Pawn == oldKey {
		t.Error("Pawn key should change when a pawn moves")
	}

	b.UnmakeMove()
	if b.State().Keys.Pawn != oldKey {
		t.Error("Pawn key should be restored on unmake")
	}
}
