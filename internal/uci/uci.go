package uci

import (
	"bufio"
	"fmt"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hailam/chessplay/internal/board"
	"github.com/hailam/chessplay/internal/engine"
	"github.com/hailam/chessplay/internal/tablebase"
)

// UCI implements the Universal Chess Interface protocol.
type UCI struct {
	engine   *engine.Engine
	position *board.Board

	chess960 bool

	nnuePath string

	syzygyPath       string
	syzygyProbeDepth int

	searching     bool
	searchDone    chan struct{}
	stopRequested atomic.Bool

	profileFile *os.File
}

// New creates a new UCI protocol handler.
func New(eng *engine.Engine) *UCI {
	return &UCI{
		engine:           eng,
		position:         board.NewBoard(),
		syzygyProbeDepth: 1,
	}
}

// Run starts the UCI main loop.
func (u *UCI) Run() {
	scanner := bufio.NewScanner(os.Stdin)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "uci":
			u.handleUCI()
		case "isready":
			fmt.Println("readyok")
		case "ucinewgame":
			u.handleNewGame()
		case "position":
			u.handlePosition(args)
		case "go":
			u.handleGo(args)
		case "stop":
			u.handleStop()
		case "quit":
			u.handleQuit()
		case "setoption":
			u.handleSetOption(args)
		case "d":
			fmt.Println(u.position.FEN())
		case "perft":
			u.handlePerft(args)
		}
	}
}

// handleUCI responds to the "uci" command.
func (u *UCI) handleUCI() {
	fmt.Println("id name ChessPlay")
	fmt.Println("id author ChessPlay Team")
	fmt.Println()
	fmt.Println("option name Hash type spin default 64 min 1 max 4096")
	fmt.Println("option name Threads type spin default 1 min 1 max 512")
	fmt.Println("option name MultiPV type spin default 1 min 1 max 256")
	fmt.Println("option name EvalFile type string default <empty>")
	fmt.Println("option name SyzygyPath type string default <empty>")
	fmt.Println("option name SyzygyProbeDepth type spin default 1 min 1 max 100")
	fmt.Println("option name UCI_Chess960 type check default false")
	fmt.Println("uciok")
}

// handleNewGame resets the engine for a new game.
func (u *UCI) handleNewGame() {
	u.engine.Clear()
	u.position = board.NewBoard()
	u.position.SetChess960(u.chess960)
}

// handlePosition parses and sets up a position.
// Formats:
//   - position startpos
//   - position startpos moves e2e4 e7e5
//   - position fen <fen>
//   - position fen <fen> moves e2e4
func (u *UCI) handlePosition(args []string) {
	if len(args) == 0 {
		return
	}

	var moveStart int
	b := board.NewBoard()
	b.SetChess960(u.chess960)

	switch args[0] {
	case "startpos":
		moveStart = 1
		for i, arg := range args {
			if arg == "moves" {
				moveStart = i + 1
				break
			}
		}
	case "fen":
		fenEnd := len(args)
		for i, arg := range args[1:] {
			if arg == "moves" {
				fenEnd = i + 1
				break
			}
		}

		fenStr := strings.Join(args[1:fenEnd], " ")
		if err := b.SetFEN(fenStr); err != nil {
			fmt.Fprintf(os.Stderr, "info string Invalid FEN: %v\n", err)
			return
		}

		moveStart = len(args)
		for i, arg := range args {
			if arg == "moves" {
				moveStart = i + 1
				break
			}
		}
	default:
		return
	}

	if moveStart < len(args) {
		var ub board.UpdateBuffer
		for _, moveStr := range args[moveStart:] {
			move, err := board.ParseMove(moveStr, b)
			if err != nil {
				fmt.Fprintf(os.Stderr, "info string Invalid move %s: %v\n", moveStr, err)
				return
			}
			if !b.MakeMove(move, &ub) {
				fmt.Fprintf(os.Stderr, "info string Illegal move: %s\n", moveStr)
				return
			}
		}
	}

	u.position = b
}

// GoOptions holds parsed "go" command options.
type GoOptions struct {
	Limits      engine.UCILimits
	MultiPV     int
	PerftDepth  int
	IsPerftOnly bool
}

// handleGo starts a search with the given parameters, or runs "go perft N"
// synchronously (spec.md §12 "go perft").
func (u *UCI) handleGo(args []string) {
	opts := u.parseGoOptions(args)
	if opts.IsPerftOnly {
		u.runPerft(opts.PerftDepth)
		return
	}

	u.engine.OnInfo = func(info engine.SearchInfo) {
		u.sendInfo(info)
	}

	searchBoard := u.position.Clone()
	originalBoard := u.position.Clone()
	ply := u.position.GamePly()

	u.searching = true
	u.stopRequested.Store(false)
	u.searchDone = make(chan struct{})

	go func() {
		defer close(u.searchDone)

		var bestMove board.Move
		if opts.MultiPV > 1 {
			tm := engine.NewTimeManager()
			tm.Init(opts.Limits, searchBoard.SideToMove(), ply)
			limits := engine.SearchLimits{
				Depth:    opts.Limits.Depth,
				Nodes:    opts.Limits.Nodes,
				MoveTime: tm.OptimumTime(),
				Infinite: opts.Limits.Infinite,
				MultiPV:  opts.MultiPV,
			}
			results := u.engine.SearchMultiPV(searchBoard, limits)
			if len(results) > 0 {
				bestMove = results[0].Move
			}
		} else {
			bestMove = u.engine.SearchWithUCILimits(searchBoard, opts.Limits, ply)
		}

		u.searching = false
		u.sendBestMove(originalBoard, bestMove)
	}()
}

// sendBestMove validates bestMove is legal in validationBoard before
// printing it, falling back to the first legal move (or 0000 if none) on
// any inconsistency between the search and the position it searched.
func (u *UCI) sendBestMove(validationBoard *board.Board, bestMove board.Move) {
	legal := validationBoard.GenerateLegalMoves()

	if bestMove != board.NoMove {
		for i := 0; i < legal.Len(); i++ {
			if legal.Get(i) == bestMove {
				fmt.Printf("bestmove %s\n", bestMove.String())
				return
			}
		}
		fmt.Fprintf(os.Stderr, "info string search returned illegal move %s\n", bestMove.String())
	}

	if legal.Len() > 0 {
		fmt.Printf("bestmove %s\n", legal.Get(0).String())
	} else {
		fmt.Println("bestmove 0000")
	}
}

// parseGoOptions parses "go" command arguments into an engine.UCILimits.
func (u *UCI) parseGoOptions(args []string) GoOptions {
	opts := GoOptions{}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "perft":
			opts.IsPerftOnly = true
			if i+1 < len(args) {
				opts.PerftDepth, _ = strconv.Atoi(args[i+1])
				i++
			}
		case "depth":
			if i+1 < len(args) {
				opts.Limits.Depth, _ = strconv.Atoi(args[i+1])
				i++
			}
		case "nodes":
			if i+1 < len(args) {
				n, _ := strconv.ParseUint(args[i+1], 10, 64)
				opts.Limits.Nodes = n
				i++
			}
		case "mate":
			if i+1 < len(args) {
				i++ // mate-in-N search isn't distinguished from normal search
			}
		case "multipv":
			if i+1 < len(args) {
				opts.MultiPV, _ = strconv.Atoi(args[i+1])
				i++
			}
		case "movetime":
			if i+1 < len(args) {
				ms, _ := strconv.Atoi(args[i+1])
				opts.Limits.MoveTime = time.Duration(ms) * time.Millisecond
				i++
			}
		case "infinite":
			opts.Limits.Infinite = true
		case "ponder":
			opts.Limits.Ponder = true
		case "wtime":
			if i+1 < len(args) {
				ms, _ := strconv.Atoi(args[i+1])
				opts.Limits.Time[board.White] = time.Duration(ms) * time.Millisecond
				i++
			}
		case "btime":
			if i+1 < len(args) {
				ms, _ := strconv.Atoi(args[i+1])
				opts.Limits.Time[board.Black] = time.Duration(ms) * time.Millisecond
				i++
			}
		case "winc":
			if i+1 < len(args) {
				ms, _ := strconv.Atoi(args[i+1])
				opts.Limits.Inc[board.White] = time.Duration(ms) * time.Millisecond
				i++
			}
		case "binc":
			if i+1 < len(args) {
				ms, _ := strconv.Atoi(args[i+1])
				opts.Limits.Inc[board.Black] = time.Duration(ms) * time.Millisecond
				i++
			}
		case "movestogo":
			if i+1 < len(args) {
				opts.Limits.MovesToGo, _ = strconv.Atoi(args[i+1])
				i++
			}
		case "searchmoves":
			// Root move restriction isn't wired into SearchLimits; the
			// remaining tokens are move strings, consume and ignore them.
			for i+1 < len(args) {
				i++
			}
		}
	}

	return opts
}

// sendInfo outputs search info in UCI format.
func (u *UCI) sendInfo(info engine.SearchInfo) {
	var parts []string

	parts = append(parts, fmt.Sprintf("depth %d", info.Depth))

	if info.Score > engine.MateScore-100 {
		mateIn := (engine.MateScore - info.Score + 1) / 2
		parts = append(parts, fmt.Sprintf("score mate %d", mateIn))
	} else if info.Score < -engine.MateScore+100 {
		mateIn := -(engine.MateScore + info.Score + 1) / 2
		parts = append(parts, fmt.Sprintf("score mate %d", mateIn))
	} else {
		parts = append(parts, fmt.Sprintf("score cp %d", info.Score))
	}

	parts = append(parts, fmt.Sprintf("nodes %d", info.Nodes))
	parts = append(parts, fmt.Sprintf("time %d", info.Time.Milliseconds()))

	if info.Time > 0 {
		nps := uint64(float64(info.Nodes) / info.Time.Seconds())
		parts = append(parts, fmt.Sprintf("nps %d", nps))
	}

	if info.HashFull > 0 {
		parts = append(parts, fmt.Sprintf("hashfull %d", info.HashFull))
	}

	if len(info.PV) > 0 {
		moveStrs := make([]string, len(info.PV))
		for i, m := range info.PV {
			moveStrs[i] = m.String()
		}
		parts = append(parts, "pv "+strings.Join(moveStrs, " "))
	}

	fmt.Printf("info %s\n", strings.Join(parts, " "))
}

// handleStop stops the current search.
func (u *UCI) handleStop() {
	if u.searching {
		u.stopRequested.Store(true)
		u.engine.Stop()
		<-u.searchDone
	}
}

// handleQuit exits the program.
func (u *UCI) handleQuit() {
	u.handleStop()
	if u.profileFile != nil {
		pprof.StopCPUProfile()
		u.profileFile.Close()
		fmt.Fprintf(os.Stderr, "info string CPU profile saved\n")
	}
	os.Exit(0)
}

// handleSetOption processes "setoption" commands.
func (u *UCI) handleSetOption(args []string) {
	var name, value string
	readingName := false
	readingValue := false

	for _, arg := range args {
		switch arg {
		case "name":
			readingName = true
			readingValue = false
		case "value":
			readingName = false
			readingValue = true
		default:
			if readingName {
				if name != "" {
					name += " "
				}
				name += arg
			} else if readingValue {
				if value != "" {
					value += " "
				}
				value += arg
			}
		}
	}

	switch strings.ToLower(name) {
	case "hash":
		// TODO: resize the shared transposition table; needs an
		// Engine.ResizeHash that rebuilds tt and repoints every thread.
	case "threads":
		// TODO: resize the Lazy-SMP pool; engine.NumWorkers is fixed at
		// process start today.
	case "evalfile":
		u.nnuePath = value
		if u.nnuePath != "" {
			if err := u.engine.LoadNNUE(u.nnuePath); err != nil {
				fmt.Fprintf(os.Stderr, "info string Failed to load NNUE: %v\n", err)
			} else {
				fmt.Fprintf(os.Stderr, "info string NNUE weights loaded from %s\n", u.nnuePath)
			}
		}
	case "syzygypath":
		u.syzygyPath = value
		u.initSyzygy()
	case "syzygyprobedepth":
		depth, err := strconv.Atoi(value)
		if err == nil && depth >= 1 {
			u.syzygyProbeDepth = depth
			u.engine.SetTablebaseProbeDepth(depth)
		}
	case "uci_chess960":
		u.chess960 = strings.ToLower(value) == "true"
		u.position.SetChess960(u.chess960)
	case "cpuprofile":
		if u.profileFile != nil {
			pprof.StopCPUProfile()
			u.profileFile.Close()
			fmt.Fprintf(os.Stderr, "info string CPU profile stopped\n")
			u.profileFile = nil
		}
		if value != "" && value != "stop" {
			f, err := os.Create(value)
			if err != nil {
				fmt.Fprintf(os.Stderr, "info string Failed to create profile: %v\n", err)
				return
			}
			if err := pprof.StartCPUProfile(f); err != nil {
				f.Close()
				fmt.Fprintf(os.Stderr, "info string Failed to start profile: %v\n", err)
				return
			}
			u.profileFile = f
			fmt.Fprintf(os.Stderr, "info string CPU profiling to %s\n", value)
		}
	}
}

// initSyzygy initializes Syzygy tablebase probing against u.syzygyPath.
func (u *UCI) initSyzygy() {
	if u.syzygyPath == "" {
		return
	}

	u.engine.SetTablebase(tablebase.NewSyzygyProber(u.syzygyPath))
	u.engine.SetTablebaseProbeDepth(u.syzygyProbeDepth)

	fmt.Fprintf(os.Stderr, "info string Syzygy tablebase directory set to %s\n", u.syzygyPath)
}

// handlePerft runs a standalone perft test against the current position.
func (u *UCI) handlePerft(args []string) {
	depth := 5
	if len(args) > 0 {
		depth, _ = strconv.Atoi(args[0])
	}
	u.runPerft(depth)
}

// runPerft times a perft test at depth against the current position.
func (u *UCI) runPerft(depth int) {
	if depth < 1 {
		depth = 1
	}

	start := time.Now()
	nodes := u.engine.Perft(u.position, depth)
	elapsed := time.Since(start)

	fmt.Printf("Nodes: %d\n", nodes)
	fmt.Printf("Time: %v\n", elapsed)
	if elapsed > 0 {
		nps := float64(nodes) / elapsed.Seconds()
		fmt.Printf("NPS: %.0f\n", nps)
	}
}
