package engine

import "github.com/hailam/chessplay/internal/board"

// PawnEntry stores a cached pawn-structure hint score.
type PawnEntry struct {
	Key     uint64
	MgScore int16
	EgScore int16
}

// PawnTable caches pawn-structure hint scores keyed by the pawn Zobrist
// key. It sits alongside, not instead of, the generic correction-history
// tables in history.go: NNUE already learns pawn structure, but a cheap
// doubled/isolated/backward-pawn signal keyed independently of the
// correction buckets catches structures the correction history hasn't
// seen enough of yet to have adjusted for.
type PawnTable struct {
	entries []PawnEntry
	mask    uint64
}

// NewPawnTable creates a pawn hash table sized in MB.
func NewPawnTable(sizeMB int) *PawnTable {
	entrySize := 12
	numEntries := (sizeMB * 1024 * 1024) / entrySize

	size := 1
	for size*2 <= numEntries {
		size *= 2
	}
	return &PawnTable{
		entries: make([]PawnEntry, size),
		mask:    uint64(size - 1),
	}
}

func (pt *PawnTable) probe(key uint64) (mg, eg int, found bool) {
	e := &pt.entries[key&pt.mask]
	if e.Key == key {
		return int(e.MgScore), int(e.EgScore), true
	}
	return 0, 0, false
}

func (pt *PawnTable) store(key uint64, mg, eg int) {
	e := &pt.entries[key&pt.mask]
	e.Key = key
	e.MgScore = int16(mg)
	e.EgScore = int16(eg)
}

// Clear empties the pawn hash table.
func (pt *PawnTable) Clear() {
	for i := range pt.entries {
		pt.entries[i] = PawnEntry{}
	}
}

const (
	doubledPawnMg   = -10
	doubledPawnEg   = -20
	isolatedPawnMg  = -12
	isolatedPawnEg  = -8
	backwardPawnMg  = -8
	backwardPawnEg  = -4
)

// PawnHint returns a phase-blended structural pawn score (White-relative,
// centipawns) for st, consulting pt if non-nil.
func PawnHint(st *board.State, pt *PawnTable, phase int) int {
	mg, eg := pawnStructureScore(st, pt)
	return (mg*phase + eg*(256-phase)) / 256
}

func pawnStructureScore(st *board.State, pt *PawnTable) (mg, eg int) {
	key := st.Keys.Pawn
	if pt != nil {
		if cmg, ceg, found := pt.probe(key); found {
			return cmg, ceg
		}
	}

	for color := board.White; color <= board.Black; color++ {
		sign := 1
		if color == board.Black {
			sign = -1
		}

		pawns := st.Pieces[color][board.Pawn]
		allPawns := pawns

		for pawns != 0 {
			sq := pawns.PopLSB()
			file := sq.File()
			fileMask := board.FileMask[file]

			pawnsOnFile := allPawns & fileMask
			if pawnsOnFile.PopCount() > 1 {
				var forward board.Square
				if color == board.White {
					forward = pawnsOnFile.MSB()
				} else {
					forward = pawnsOnFile.LSB()
				}
				if sq == forward {
					mg += sign * doubledPawnMg
					eg += sign * doubledPawnEg
				}
			}

			var adjacent board.Bitboard
			if file > 0 {
				adjacent |= board.FileMask[file-1]
			}
			if file < 7 {
				adjacent |= board.FileMask[file+1]
			}
			if (allPawns & adjacent) == 0 {
				mg += sign * isolatedPawnMg
				eg += sign * isolatedPawnEg
				continue
			}

			relRank := sq.RelativeRank(color)
			if relRank <= 1 {
				continue
			}
			var behind board.Bitboard
			if color == board.White {
				for r := 0; r < sq.Rank(); r++ {
					behind |= board.RankMask[r]
				}
			} else {
				for r := sq.Rank() + 1; r < 8; r++ {
					behind |= board.RankMask[r]
				}
			}
			adjacentPawns := allPawns & adjacent
			if adjacentPawns != 0 && (adjacentPawns&behind) == adjacentPawns {
				continue
			}

			var stopSq board.Square
			if color == board.White {
				stopSq = sq + 8
			} else {
				stopSq = sq - 8
			}
			if stopSq.IsValid() {
				enemyAttacks := board.PawnAttacks(stopSq, color)
				enemyPawns := st.Pieces[color.Other()][board.Pawn]
				if enemyAttacks&enemyPawns != 0 {
					mg += sign * backwardPawnMg
					eg += sign * backwardPawnEg
				}
			}
		}
	}

	if pt != nil {
		pt.store(key, mg, eg)
	}
	return mg, eg
}
