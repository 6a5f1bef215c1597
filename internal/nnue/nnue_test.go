package nnue

import (
	"testing"

	"github.com/hailam/chessplay/internal/board"
)

func TestKingBucketMirrorsUpperHalf(t *testing.T) {
	for file := 0; file < 8; file++ {
		sq := board.NewSquare(file, 3)
		bucket, mirror := kingBucket(sq)
		if file >= 4 && !mirror {
			t.Errorf("file %d expected mirror=true", file)
		}
		if file < 4 && mirror {
			t.Errorf("file %d expected mirror=false", file)
		}
		if bucket < 0 || bucket >= NumKingBuckets {
			t.Errorf("bucket %d out of range for file %d", bucket, file)
		}
	}
	bL, _ := kingBucket(board.NewSquare(0, 3))
	bR, _ := kingBucket(board.NewSquare(7, 3))
	if bL != bR {
		t.Errorf("files a and h on the same rank should share a bucket after mirroring: %d vs %d", bL, bR)
	}
}

func TestFeatureIndexInRange(t *testing.T) {
	b := board.NewBoard()
	st := b.State()
	whiteKing := st.KingSquare[board.White]
	blackKing := st.KingSquare[board.Black]

	feats := activeFeatures(st, board.White, whiteKing, nil)
	feats = append(feats, activeFeatures(st, board.Black, blackKing, nil)...)
	if len(feats) == 0 {
		t.Fatalf("expected active features for the starting position")
	}
	for _, idx := range feats {
		if idx < 0 || idx >= HalfKPSize {
			t.Errorf("feature index %d out of range [0, %d)", idx, HalfKPSize)
		}
	}
}

func TestEvaluatorPushPopRoundTrips(t *testing.T) {
	e, err := NewEvaluator("")
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	b := board.NewBoard()
	e.Reset(b)

	before := e.Evaluate(b)

	m, err := board.ParseMove("e2e4", b)
	if err != nil {
		t.Fatalf("ParseMove: %v", err)
	}
	var ub board.UpdateBuffer
	if !b.MakeMove(m, &ub) {
		t.Fatalf("expected e2e4 to be legal")
	}
	e.Push(b, &ub, [2]bool{false, false})
	_ = e.Evaluate(b)

	e.Pop()
	b.UnmakeMove()

	after := e.Evaluate(b)
	if before != after {
		t.Errorf("evaluation after push/pop round trip = %d, want %d", after, before)
	}
}
