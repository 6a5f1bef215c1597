package engine

import (
	"log"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/hailam/chessplay/internal/board"
	"github.com/hailam/chessplay/internal/nnue"
	"github.com/hailam/chessplay/internal/tablebase"
	"golang.org/x/sync/errgroup"
)

// NumWorkers is the number of parallel Lazy-SMP search threads (matches
// CPU cores).
var NumWorkers = runtime.GOMAXPROCS(0)

// SearchInfo contains information about the current search, reported
// through Engine.OnInfo after each improving result (spec.md §4.H "info").
type SearchInfo struct {
	Depth    int
	Score    int
	Nodes    uint64
	Time     time.Duration
	PV       []board.Move
	HashFull int // permille of hash table used
}

// SearchLimits specifies constraints on the search.
type SearchLimits struct {
	Depth    int           // maximum depth (0 = no limit)
	Nodes    uint64        // maximum nodes (0 = no limit)
	MoveTime time.Duration // time for this move (0 = no limit)
	Infinite bool          // search until stopped
	MultiPV  int           // number of principal variations (0 or 1 = single best move)
}

// SearchResult contains the result of a single PV search (one MultiPV line).
type SearchResult struct {
	Move  board.Move
	Score int
	PV    []board.Move
	Depth int
}

// Difficulty represents the AI difficulty level.
type Difficulty int

const (
	Easy   Difficulty = iota // ~3 ply, 500ms
	Medium                   // ~7 ply, 1s
	Hard                     // maximum strength, time-limited
)

// DifficultySettings maps difficulty to search limits.
var DifficultySettings = map[Difficulty]SearchLimits{
	Easy:   {Depth: 3, MoveTime: 500 * time.Millisecond},
	Medium: {Depth: 7, MoveTime: 1 * time.Second},
	Hard:   {Depth: 40, MoveTime: 3 * time.Second},
}

// Engine is the chess search engine: one shared transposition table and a
// pool of ThreadData Lazy-SMP workers, each with its own board copy,
// evaluator accumulator and history tables (spec.md §4.G "Lazy SMP").
type Engine struct {
	tt      *TranspositionTable
	threads []*ThreadData

	stopFlag atomic.Bool

	difficulty Difficulty
	tablebase  tablebase.Prober
	tbProbeDepth int

	OnInfo func(SearchInfo)
}

// NewEngine creates a chess engine with the given transposition table size
// in MB. NNUE starts with untrained (reproducible random) weights; call
// LoadNNUE to load a real network.
func NewEngine(ttSizeMB int) *Engine {
	tt := NewTranspositionTable(ttSizeMB)

	e := &Engine{
		tt:           tt,
		difficulty:   Medium,
		threads:      make([]*ThreadData, NumWorkers),
		tbProbeDepth: 1,
	}

	log.Printf("[Engine] Creating %d Lazy-SMP threads (GOMAXPROCS=%d)", NumWorkers, runtime.GOMAXPROCS(0))

	for i := 0; i < NumWorkers; i++ {
		pawnTable := NewPawnTable(1)
		nnueEval, err := nnue.NewEvaluator("")
		if err != nil {
			// Untrained random weights never fail to build; a non-nil
			// error here means a corrupt build, not a missing file.
			panic("engine: failed to build default NNUE evaluator: " + err.Error())
		}
		e.threads[i] = NewThreadData(i, tt, pawnTable, &e.stopFlag, nnueEval)
	}

	return e
}

// SetDifficulty sets the engine difficulty.
func (e *Engine) SetDifficulty(d Difficulty) {
	e.difficulty = d
}

// SetTablebase sets the tablebase prober used by every thread.
func (e *Engine) SetTablebase(tb tablebase.Prober) {
	e.tablebase = tb
	for _, td := range e.threads {
		td.SetTablebase(tb, e.tbProbeDepth)
	}
}

// EnableSyzygyTablebase points every thread's tablebase prober at the local
// Syzygy directory (empty path uses tablebase.DefaultCacheDir).
func (e *Engine) EnableSyzygyTablebase(path string) {
	e.SetTablebase(tablebase.NewSyzygyProber(path))
}

// SetTablebaseProbeDepth sets the minimum search depth at which threads
// probe the tablebase (spec.md §4.G); applies to the prober set via
// SetTablebase/EnableSyzygyTablebase.
func (e *Engine) SetTablebaseProbeDepth(depth int) {
	if depth < 1 {
		depth = 1
	}
	e.tbProbeDepth = depth
	for _, td := range e.threads {
		td.SetTablebase(e.tablebase, depth)
	}
}

// HasTablebase returns true if a tablebase is configured and has files.
func (e *Engine) HasTablebase() bool {
	return e.tablebase != nil && e.tablebase.Available()
}

// LoadNNUE loads NNUE weights from weightsFile and shares the loaded
// network across every thread's evaluator (spec.md §4.D).
func (e *Engine) LoadNNUE(weightsFile string) error {
	log.Printf("[Engine] Loading NNUE weights from %s", weightsFile)
	primary, err := nnue.NewEvaluator(weightsFile)
	if err != nil {
		log.Printf("[Engine] Failed to load NNUE: %v", err)
		return err
	}
	net := primary.Network()
	e.threads[0].nnueEval = primary
	for i := 1; i < len(e.threads); i++ {
		e.threads[i].nnueEval = nnue.NewEvaluatorShared(net)
	}
	log.Printf("[Engine] NNUE weights loaded successfully")
	return nil
}

// Search finds the best move for the given position using the current
// difficulty's limits.
func (e *Engine) Search(b *board.Board) board.Move {
	limits := DifficultySettings[e.difficulty]
	return e.SearchWithLimits(b, limits)
}

// SearchWithLimits finds the best move with specific search limits, using
// Lazy SMP across every configured thread.
func (e *Engine) SearchWithLimits(b *board.Board, limits SearchLimits) board.Move {
	if move, ok := e.probeTablebaseRoot(b); ok {
		return move
	}

	maxDepth := MaxPly
	if limits.Depth > 0 {
		maxDepth = limits.Depth
	}
	var deadline time.Time
	if limits.MoveTime > 0 {
		deadline = time.Now().Add(limits.MoveTime)
	}

	result := e.runSearch(b, maxDepth, deadline, limits.Nodes, nil)
	return result.Move
}

// SearchWithUCILimits finds the best move using UCI time controls,
// supporting wtime/btime/winc/binc tournament time management.
func (e *Engine) SearchWithUCILimits(b *board.Board, limits UCILimits, ply int) board.Move {
	if move, ok := e.probeTablebaseRoot(b); ok {
		return move
	}

	tm := NewTimeManager()
	tm.Init(limits, b.SideToMove(), ply)

	maxDepth := MaxPly
	if limits.Depth > 0 {
		maxDepth = limits.Depth
	}

	result := e.runSearch(b, maxDepth, time.Time{}, limits.Nodes, tm)
	return result.Move
}

// runSearchResult is the outcome of one runSearch call: the main thread's
// best move/score/PV plus aggregate node count.
type runSearchResult struct {
	Move  board.Move
	Score int
	PV    []board.Move
	Depth int
	Nodes uint64
}

// runSearch drives the Lazy-SMP pool: every thread iteratively deepens from
// its own staggered start depth on its own board.Clone() of b, sharing one
// transposition table and stop flag. The main thread (index 0) drives
// reporting, time management and early termination.
func (e *Engine) runSearch(b *board.Board, maxDepth int, deadline time.Time, nodeLimit uint64, tm *TimeManager) runSearchResult {
	e.stopFlag.Store(false)
	e.tt.NewSearch()

	for _, td := range e.threads {
		td.Reset(b.Clone())
	}

	startTime := time.Now()

	g := new(errgroup.Group)
	for i := 1; i < len(e.threads); i++ {
		td := e.threads[i]
		startDepth := helperStartDepth(i)
		g.Go(func() error {
			e.helperSearch(td, startDepth, maxDepth)
			return nil
		})
	}

	result := e.mainSearch(e.threads[0], maxDepth, startTime, deadline, nodeLimit, tm)

	e.stopFlag.Store(true)
	_ = g.Wait()

	return result
}

// helperStartDepth staggers Lazy-SMP helper threads so they skip shallow
// depths the main thread will finish almost instantly (spec.md §4.G).
func helperStartDepth(threadID int) int {
	switch {
	case threadID >= 6:
		return 4
	case threadID >= 3:
		return 3
	default:
		return 2
	}
}

// helperSearch runs plain iterative deepening with no reporting; its only
// job is to populate the shared transposition table from a different part
// of the tree than the main thread explores.
func (e *Engine) helperSearch(td *ThreadData, startDepth, maxDepth int) {
	for depth := startDepth; depth <= maxDepth; depth++ {
		if e.stopFlag.Load() {
			return
		}
		td.SearchRoot(depth, -Infinity, Infinity)
		if e.stopFlag.Load() {
			return
		}
	}
}

// mainSearch runs the main thread's iterative deepening with aspiration
// windows, time management and OnInfo reporting; it owns the decision of
// when to set the shared stop flag.
func (e *Engine) mainSearch(td *ThreadData, maxDepth int, startTime time.Time, deadline time.Time, nodeLimit uint64, tm *TimeManager) runSearchResult {
	var result runSearchResult
	var prevScore int
	var lastBestMove board.Move
	var stabilityCount, instabilityCount int

	for depth := 1; depth <= maxDepth; depth++ {
		if e.stopFlag.Load() {
			break
		}

		var score int
		if depth >= 5 {
			score = e.searchAspirated(td, depth, prevScore)
		} else {
			score = td.SearchRoot(depth, -Infinity, Infinity)
		}

		if e.stopFlag.Load() {
			break
		}

		pv := td.PV()
		if len(pv) == 0 {
			continue
		}
		move := pv[0]

		if move == lastBestMove {
			stabilityCount++
			instabilityCount = 0
		} else {
			instabilityCount++
			stabilityCount = 0
		}
		lastBestMove = move
		prevScore = score

		result = runSearchResult{Move: move, Score: score, PV: pv, Depth: depth, Nodes: e.totalNodes()}

		if e.OnInfo != nil {
			e.OnInfo(SearchInfo{
				Depth:    depth,
				Score:    score,
				Nodes:    result.Nodes,
				Time:     time.Since(startTime),
				PV:       pv,
				HashFull: e.tt.Hashfull(),
			})
		}

		if isMateScore(score) {
			break
		}
		if nodeLimit > 0 && result.Nodes >= nodeLimit {
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}
		if tm != nil {
			bestNodes, totalNodes := td.RootNodeFraction(move)
			tm.AdjustForNodeFraction(bestNodes, totalNodes)
			tm.AdjustForStability(stabilityCount)
			tm.AdjustForInstability(instabilityCount)
			if tm.ShouldStop() {
				break
			}
			if tm.PastOptimum() && stabilityCount >= 4 {
				break
			}
		}
	}

	return result
}

// searchAspirated runs depth with a window centered on prevScore, widening
// on fail-high/fail-low until the score lands inside the window or the
// window has opened to the full range (spec.md §4.G "aspiration windows").
func (e *Engine) searchAspirated(td *ThreadData, depth, prevScore int) int {
	window := 25
	alpha := prevScore - window
	beta := prevScore + window

	for {
		score := td.SearchRoot(depth, alpha, beta)
		if e.stopFlag.Load() {
			return score
		}
		if score <= alpha {
			alpha -= window
			window *= 2
		} else if score >= beta {
			beta += window
			window *= 2
		} else {
			return score
		}
		if alpha <= -Infinity && beta >= Infinity {
			return td.SearchRoot(depth, -Infinity, Infinity)
		}
		if alpha < -Infinity {
			alpha = -Infinity
		}
		if beta > Infinity {
			beta = Infinity
		}
	}
}

// totalNodes returns the node count summed across every thread.
func (e *Engine) totalNodes() uint64 {
	var total uint64
	for _, td := range e.threads {
		total += td.Nodes()
	}
	return total
}

// probeTablebaseRoot returns a tablebase move for b if one is configured,
// available, and the position is within its piece-count range.
func (e *Engine) probeTablebaseRoot(b *board.Board) (board.Move, bool) {
	if e.tablebase == nil || !e.tablebase.Available() {
		return board.NoMove, false
	}
	if tablebase.CountPieces(b.State()) > e.tablebase.MaxPieces() {
		return board.NoMove, false
	}
	res := e.tablebase.ProbeRoot(b)
	if res.Found && res.Move != board.NoMove {
		return res.Move, true
	}
	return board.NoMove, false
}

// SearchMultiPV finds multiple principal variations for analysis, excluding
// already-found root moves from each subsequent search (spec.md §4.H
// "MultiPV").
func (e *Engine) SearchMultiPV(b *board.Board, limits SearchLimits) []SearchResult {
	numPV := limits.MultiPV
	if numPV <= 0 {
		numPV = 1
	}

	maxDepth := MaxPly
	if limits.Depth > 0 {
		maxDepth = limits.Depth
	}
	var deadline time.Time
	if limits.MoveTime > 0 {
		deadline = time.Now().Add(limits.MoveTime)
	}

	results := make([]SearchResult, 0, numPV)
	excluded := make([]board.Move, 0, numPV)

	for i := 0; i < numPV; i++ {
		move, score, pv, depth := e.searchWithExclusions(b, maxDepth, deadline, excluded)
		if move == board.NoMove {
			break
		}
		results = append(results, SearchResult{Move: move, Score: score, PV: pv, Depth: depth})
		excluded = append(excluded, move)
	}

	for i := 0; i < len(results)-1; i++ {
		best := i
		for j := i + 1; j < len(results); j++ {
			if results[j].Score > results[best].Score {
				best = j
			}
		}
		if best != i {
			results[i], results[best] = results[best], results[i]
		}
	}

	return results
}

// searchWithExclusions runs a single-threaded iterative-deepening search
// from the main thread, excluding excluded root moves, for one MultiPV line.
func (e *Engine) searchWithExclusions(b *board.Board, maxDepth int, deadline time.Time, excluded []board.Move) (board.Move, int, []board.Move, int) {
	e.stopFlag.Store(false)
	e.tt.NewSearch()

	td := e.threads[0]
	td.Reset(b.Clone())
	td.SetExcludedMoves(excluded)
	defer td.SetExcludedMoves(nil)

	startTime := time.Now()
	var bestMove board.Move
	var bestScore int
	var bestPV []board.Move
	var bestDepth int
	var prevScore int

	for depth := 1; depth <= maxDepth; depth++ {
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}

		var score int
		if depth >= 5 {
			score = e.searchAspirated(td, depth, prevScore)
		} else {
			score = td.SearchRoot(depth, -Infinity, Infinity)
		}
		prevScore = score

		pv := td.PV()
		if len(pv) > 0 {
			bestMove = pv[0]
			bestScore = score
			bestPV = pv
			bestDepth = depth
		}

		if isMateScore(score) {
			break
		}
		if !deadline.IsZero() {
			elapsed := time.Since(startTime)
			remaining := deadline.Sub(startTime) - elapsed
			if remaining < elapsed {
				break
			}
		}
	}

	return bestMove, bestScore, bestPV, bestDepth
}

// Stop stops the current search.
func (e *Engine) Stop() {
	e.stopFlag.Store(true)
}

// Clear empties the transposition table and pawn tables, and ages the
// history tables (see MoveOrderer.Clear).
func (e *Engine) Clear() {
	e.tt.Clear()
	for _, td := range e.threads {
		td.orderer.Clear()
		td.pawnTable.Clear()
	}
}

// Perft performs a perft test (for debugging move generation).
func (e *Engine) Perft(b *board.Board, depth int) uint64 {
	if depth == 0 {
		return 1
	}

	moves := b.GenerateLegalMoves()
	if depth == 1 {
		return uint64(moves.Len())
	}

	var nodes uint64
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		if !b.MakeMove(m, nil) {
			continue
		}
		nodes += e.Perft(b, depth-1)
		b.UnmakeMove()
	}

	return nodes
}

// Evaluate returns the static evaluation of a position (NNUE + pawn hint),
// sharing the engine's loaded weights without disturbing the search pool.
func (e *Engine) Evaluate(b *board.Board) int {
	net := e.threads[0].nnueEval.Network()
	ev := nnue.NewEvaluatorShared(net)
	ev.Reset(b)
	raw := ev.Evaluate(b)
	hint := PawnHint(b.State(), nil, gamePhase(b.State()))
	if b.SideToMove() == board.Black {
		hint = -hint
	}
	return raw + hint
}

// ScoreToString converts a score to a human-readable string.
func ScoreToString(score int) string {
	if score > MateScore-100 {
		mateIn := (MateScore - score + 1) / 2
		return "Mate in " + strconv.Itoa(mateIn)
	}
	if score < -MateScore+100 {
		mateIn := (MateScore + score + 1) / 2
		return "Mated in " + strconv.Itoa(mateIn)
	}

	sign := ""
	if score < 0 {
		sign = "-"
		score = -score
	}
	pawns := score / 100
	centipawns := score % 100

	return sign + strconv.Itoa(pawns) + "." + strconv.Itoa(centipawns)
}
