package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"runtime/pprof"

	"github.com/hailam/chessplay/internal/board"
	"github.com/hailam/chessplay/internal/engine"
	"github.com/hailam/chessplay/internal/storage"
	"github.com/hailam/chessplay/internal/uci"
)

// defaultNNUEFile is the weights file name auto-loaded from the platform
// NNUE data directory if present.
const defaultNNUEFile = "chessplay.nnue"

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")

func main() {
	flag.Parse()

	profilePath := *cpuprofile
	if profilePath == "" {
		profilePath = os.Getenv("CPUPROFILE")
	}
	if profilePath != "" {
		f, err := os.Create(profilePath)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
		log.Printf("CPU profiling enabled, writing to %s", profilePath)
	}

	warmCuckooCache()

	// 64MB hash table, Lazy-SMP search across GOMAXPROCS threads.
	eng := engine.NewEngine(64)

	if err := autoLoadNNUE(eng); err != nil {
		log.Printf("NNUE not loaded: %v (using untrained weights)", err)
	}

	protocol := uci.New(eng)
	protocol.Run()
}

// warmCuckooCache restores the board package's cuckoo repetition table
// from the on-disk cache if one matches this build, else persists the
// freshly built table for next time.
func warmCuckooCache() {
	err := storage.LoadOrBuildCuckoo(board.RestoreCuckoo, board.CuckooSnapshot)
	if err != nil {
		log.Printf("cuckoo table disk cache unavailable: %v (using in-memory build)", err)
	}
}

// autoLoadNNUE attempts to load NNUE weights from the platform data
// directory, then the current directory.
func autoLoadNNUE(eng *engine.Engine) error {
	searchPaths := []string{"."}
	if nnueDir, err := storage.GetNNUEDir(); err == nil {
		searchPaths = append([]string{nnueDir}, searchPaths...)
	}

	for _, dir := range searchPaths {
		path := filepath.Join(dir, defaultNNUEFile)
		if !fileExists(path) {
			continue
		}
		if err := eng.LoadNNUE(path); err != nil {
			log.Printf("Failed to load NNUE from %s: %v", path, err)
			continue
		}
		log.Printf("NNUE loaded from %s", path)
		return nil
	}

	return os.ErrNotExist
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
