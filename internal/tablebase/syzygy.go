package tablebase

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hailam/chessplay/internal/board"
)

// SyzygyProber reports which local Syzygy files are present under path.
// There is no pure-Go Syzygy file decoder wired in (spec.md Non-goals:
// "full Syzygy tablebase probing"), so Probe/ProbeRoot always report
// not-found; MaxPieces/Available reflect what's on disk so a future decoder
// has something real to key off.
type SyzygyProber struct {
	path      string
	maxPieces int
	available bool
	mu        sync.RWMutex
}

// NewSyzygyProber creates a prober rooted at path (DefaultCacheDir if empty).
func NewSyzygyProber(path string) *SyzygyProber {
	if path == "" {
		path = DefaultCacheDir()
	}
	sp := &SyzygyProber{path: path}
	sp.refresh()
	return sp
}

// DefaultCacheDir returns the default Syzygy file location.
func DefaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "syzygy"
	}
	return filepath.Join(dir, "chessplay", "syzygy")
}

func (sp *SyzygyProber) refresh() {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	entries, err := os.ReadDir(sp.path)
	if err != nil {
		sp.available = false
		sp.maxPieces = 0
		return
	}

	maxPieces := 0
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".rtbw") {
			continue
		}
		material := strings.TrimSuffix(name, ".rtbw")
		if n := countPiecesFromMaterial(material); n > maxPieces {
			maxPieces = n
		}
	}
	sp.maxPieces = maxPieces
	sp.available = maxPieces > 0
	if sp.available {
		log.Printf("tablebase: found Syzygy files at %s (up to %d pieces)", sp.path, sp.maxPieces)
	}
}

// SetPath updates the tablebase directory and rescans it.
func (sp *SyzygyProber) SetPath(path string) {
	if path == "" {
		path = DefaultCacheDir()
	}
	sp.path = path
	sp.refresh()
}

// Probe always reports not-found: no local decoder is wired.
func (sp *SyzygyProber) Probe(st *board.State) ProbeResult {
	return ProbeResult{Found: false}
}

// ProbeRoot always reports not-found: no local decoder is wired.
func (sp *SyzygyProber) ProbeRoot(b *board.Board) RootResult {
	return RootResult{Found: false}
}

// MaxPieces returns the largest piece count among files found on disk.
func (sp *SyzygyProber) MaxPieces() int {
	sp.mu.RLock()
	defer sp.mu.RUnlock()
	return sp.maxPieces
}

// Available reports whether any local Syzygy files were found.
func (sp *SyzygyProber) Available() bool {
	sp.mu.RLock()
	defer sp.mu.RUnlock()
	return sp.available
}

// Path returns the configured tablebase directory.
func (sp *SyzygyProber) Path() string { return sp.path }

// materialKey converts a state to a material string like "KQvKR", the
// naming convention Syzygy files use.
func materialKey(st *board.State) string {
	var white, black strings.Builder
	order := [...]board.PieceType{board.Queen, board.Rook, board.Bishop, board.Knight, board.Pawn}
	for _, pt := range order {
		n := st.Pieces[board.White][pt].PopCount()
		for i := 0; i < n; i++ {
			white.WriteByte(pieceChar(pt))
		}
	}
	for _, pt := range order {
		n := st.Pieces[board.Black][pt].PopCount()
		for i := 0; i < n; i++ {
			black.WriteByte(pieceChar(pt))
		}
	}
	return "K" + white.String() + "vK" + black.String()
}

func pieceChar(pt board.PieceType) byte {
	switch pt {
	case board.Queen:
		return 'Q'
	case board.Rook:
		return 'R'
	case board.Bishop:
		return 'B'
	case board.Knight:
		return 'N'
	case board.Pawn:
		return 'P'
	default:
		return '?'
	}
}

// countPiecesFromMaterial counts the letters in a "KQvKR"-style name,
// kings included.
func countPiecesFromMaterial(material string) int {
	n := 0
	for _, c := range material {
		if c != 'v' {
			n++
		}
	}
	return n
}
