// Package tablebase defines the narrow endgame-tablebase probing interface
// search.go consults: WDL/DTZ lookups feeding a search score, nothing more.
// Full Syzygy file reading is out of scope (spec.md Non-goals); SyzygyProber
// exists so the engine always has a probe point wired, even when it falls
// back to NoopProber for lack of local files.
package tablebase

import (
	"github.com/hailam/chessplay/internal/board"
)

// WDL represents Win/Draw/Loss result.
type WDL int

const (
	WDLLoss        WDL = -2
	WDLBlessedLoss WDL = -1 // Loss but 50-move rule may save it
	WDLDraw        WDL = 0
	WDLCursedWin   WDL = 1 // Win but 50-move rule may interfere
	WDLWin         WDL = 2
)

// ProbeResult contains the result of a tablebase probe.
type ProbeResult struct {
	Found bool
	WDL   WDL
	DTZ   int // distance to zeroing move (pawn move or capture)
}

// RootResult contains the best move from tablebase at root position.
type RootResult struct {
	Found bool
	Move  board.Move
	WDL   WDL
	DTZ   int
}

// Prober is the interface for tablebase probing.
type Prober interface {
	// Probe looks up st in the tablebase.
	Probe(st *board.State) ProbeResult

	// ProbeRoot finds the best move from the tablebase at the root position.
	ProbeRoot(b *board.Board) RootResult

	// MaxPieces returns the maximum number of pieces supported.
	MaxPieces() int

	// Available returns true if tablebases are loaded and available.
	Available() bool
}

// WDLToScore converts a WDL result to a search score, ply-adjusted the same
// way mate scores are (closer wins/losses score further from zero).
func WDLToScore(wdl WDL, ply int) int {
	const tbScore = 30000

	switch wdl {
	case WDLWin:
		return tbScore - ply
	case WDLCursedWin:
		return tbScore - 100 - ply
	case WDLDraw:
		return 0
	case WDLBlessedLoss:
		return -tbScore + 100 + ply
	case WDLLoss:
		return -tbScore + ply
	default:
		return 0
	}
}

// NoopProber always reports "not found"; the default when no tablebase
// files are configured.
type NoopProber struct{}

func (NoopProber) Probe(st *board.State) ProbeResult  { return ProbeResult{Found: false} }
func (NoopProber) ProbeRoot(b *board.Board) RootResult { return RootResult{Found: false} }
func (NoopProber) MaxPieces() int                      { return 0 }
func (NoopProber) Available() bool                     { return false }

// CountPieces returns the total number of pieces on the board.
func CountPieces(st *board.State) int {
	return st.AllOccupied.PopCount()
}
