package nnue

import "github.com/hailam/chessplay/internal/board"

// pieceIndex maps (PieceType, Color) to a 0-9 HalfKP slot: White P,N,B,R,Q
// are 0-4, Black P,N,B,R,Q are 5-9. Kings never appear as non-king features.
func pieceIndex(pt board.PieceType, c board.Color) int {
	if pt == board.King || pt > board.Queen {
		return -1
	}
	base := int(pt)
	if c == board.Black {
		base += 5
	}
	return base
}

// flipFile mirrors a square horizontally (a<->h, b<->g, ...), used both for
// black's perspective (so both sides "see" the board the same way) and for
// the king-bucket horizontal-mirroring trick (files e-h fold onto a-d).
func flipFile(sq board.Square) board.Square {
	return board.Square(int(sq) ^ 7)
}

// kingBucket reduces a king square to one of NumKingBuckets buckets and
// reports whether this perspective's features should be horizontally
// mirrored to match it (spec.md §4.D "king-bucketed refresh with
// horizontal mirroring").
func kingBucket(kingSq board.Square) (bucket int, mirror bool) {
	file := kingSq.File()
	mirror = file >= 4
	effFile := file
	if mirror {
		effFile = 7 - file
	}
	return kingSq.Rank()*4 + effFile, mirror
}

// featureIndex computes the HalfKP feature slot for a non-king piece as
// seen from perspective (whose king sits at kingSq).
func featureIndex(perspective board.Color, kingSq board.Square, pt board.PieceType, c board.Color, sq board.Square) int {
	bucket, mirror := kingBucket(kingSq)

	pc := c
	pieceSq := sq
	if perspective == board.Black {
		pieceSq = pieceSq.Mirror()
		pc = pc.Other()
	}
	if mirror {
		pieceSq = flipFile(pieceSq)
	}

	pi := pieceIndex(pt, pc)
	if pi < 0 {
		return -1
	}
	return bucket*(NumPieceTypes*NumPieceSquares) + pi*NumPieceSquares + int(pieceSq)
}

// activeFeatures returns every active feature index for a perspective,
// given that perspective's king square, read straight off the board's
// piece bitboards.
func activeFeatures(st *board.State, perspective board.Color, kingSq board.Square, out []int) []int {
	for c := board.White; c <= board.Black; c++ {
		for pt := board.Pawn; pt < board.King; pt++ {
			bb := st.Pieces[c][pt]
			for bb != 0 {
				sq := bb.PopLSB()
				if idx := featureIndex(perspective, kingSq, pt, c, sq); idx >= 0 {
					out = append(out, idx)
				}
			}
		}
	}
	return out
}

// deltaFeatures translates a board.UpdateBuffer (piece/square add-or-remove
// pairs produced by a single move) into feature-index adds/removes for one
// perspective. Returns ok=false if the perspective's own king moved, since
// a king-bucket change invalidates every existing feature for that
// perspective and requires a full refresh instead (spec.md §4.D).
func deltaFeatures(ub *board.UpdateBuffer, perspective board.Color, kingSq board.Square) (adds, rems [2]int, nAdd, nRem int, ok bool) {
	ok = true
	for i := 0; i < ub.Subs; i++ {
		p := ub.SubPiece[i]
		if p.Type() == board.King {
			ok = false
			return
		}
		idx := featureIndex(perspective, kingSq, p.Type(), p.Color(), ub.SubSquare[i])
		if idx >= 0 {
			rems[nRem] = idx
			nRem++
		}
	}
	for i := 0; i < ub.Adds; i++ {
		p := ub.AddPiece[i]
		if p.Type() == board.King {
			ok = false
			return
		}
		idx := featureIndex(perspective, kingSq, p.Type(), p.Color(), ub.AddSquare[i])
		if idx >= 0 {
			adds[nAdd] = idx
			nAdd++
		}
	}
	return
}
