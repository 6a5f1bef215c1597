// Package nnue implements NNUE (efficiently updatable neural network)
// evaluation: a two-perspective feature transformer, concatenation,
// clipped activation, and a single linear output layer.
package nnue

import "github.com/hailam/chessplay/internal/board"

const (
	// King-bucketed HalfKP feature space. Each perspective's king square is
	// reduced to one of NumKingBuckets buckets (horizontal mirroring folds
	// files e-h onto a-d, halving the king dimension) before indexing the
	// feature table, keeping the input layer an order of magnitude smaller
	// than a plain HalfKP table without losing king-zone resolution.
	NumKingBuckets  = 32 // 8 ranks * 4 mirrored files
	NumPieceTypes   = 10 // P,N,B,R,Q for both colors, kings excluded
	NumPieceSquares = 64

	HalfKPSize = NumKingBuckets * NumPieceTypes * NumPieceSquares // 20480

	L1Size      = 256 // per-perspective hidden layer width
	OutputScale = 400 // final scale to centipawns

	InputQuantShift  = 6
	OutputQuantShift = 6
)

// Activation selects the feature-transformer nonlinearity (spec.md §4.D:
// "activation (CReLU or SCReLU)"). SCReLU (squared clipped ReLU) gives
// sharper gradients during training and slightly stronger play; CReLU is
// cheaper and is what the loaded network's header declares if no SCReLU
// weights are present.
type Activation int

const (
	ActivationCReLU Activation = iota
	ActivationSCReLU
)

// clampedReLU clamps to [0, 127] for quantized int8 arithmetic.
func clampedReLU(x int16) int8 {
	if x < 0 {
		return 0
	}
	if x > 127 {
		return 127
	}
	return int8(x)
}

// squaredClampedReLU clamps to [0,127] then squares and rescales back into
// the int8 range, per the SCReLU activation used by stronger NNUE nets.
func squaredClampedReLU(x int16) int8 {
	c := clampedReLU(x)
	sq := int32(c) * int32(c)
	return int8(sq >> 7)
}

func activate(x int16, a Activation) int8 {
	if a == ActivationSCReLU {
		return squaredClampedReLU(x)
	}
	return clampedReLU(x)
}

// Evaluator ties a loaded Network to a per-search AccumulatorStack.
type Evaluator struct {
	net   *Network
	stack *AccumulatorStack
}

// NewEvaluator loads weights from weightsFile, or falls back to small
// reproducible random weights (for running without a trained network —
// development/testing only, never shipped as the engine's real eval).
func NewEvaluator(weightsFile string) (*Evaluator, error) {
	net := NewNetwork()
	if weightsFile != "" {
		if err := net.LoadWeights(weightsFile); err != nil {
			return nil, err
		}
	} else {
		net.InitRandom(12345)
	}
	return &Evaluator{net: net, stack: NewAccumulatorStack()}, nil
}

// NewEvaluatorShared builds an Evaluator reusing an already-loaded Network
// (read-only after load) with its own fresh AccumulatorStack, so Lazy-SMP
// workers share one copy of the weights instead of reloading the file per
// thread.
func NewEvaluatorShared(net *Network) *Evaluator {
	return &Evaluator{net: net, stack: NewAccumulatorStack()}
}

// Network returns the evaluator's loaded weights, for sharing with sibling
// Lazy-SMP workers via NewEvaluatorShared.
func (e *Evaluator) Network() *Network { return e.net }

// Reset clears the accumulator stack for a new game/search root.
func (e *Evaluator) Reset(b *board.Board) {
	e.stack.Reset(b)
}

// Push records a move's feature delta without materializing it (spec.md
// §4.D "lazy materialization") — call after board.MakeMove.
func (e *Evaluator) Push(b *board.Board, ub *board.UpdateBuffer, kingMoved [2]bool) {
	e.stack.Push(b, ub, kingMoved)
}

// Pop discards the top of the accumulator stack — call after board.UnmakeMove.
func (e *Evaluator) Pop() {
	e.stack.Pop()
}

// Evaluate materializes the accumulator if needed and returns the
// evaluation in centipawns from the side-to-move's perspective, scaled by
// the game phase and damped as the position approaches the fifty-move
// limit (spec.md §4.D).
func (e *Evaluator) Evaluate(b *board.Board) int {
	st := b.State()
	acc := e.stack.Materialize(b, e.net)
	raw := e.net.Forward(acc, st.SideToMove)
	return scaleEval(raw, st)
}

// scaleEval scales the raw network score by remaining non-pawn material
// (spec.md §4.D "Material scaling") — keeping material on the board when
// ahead and encouraging trades when behind — then damps it as the
// position nears a fifty-move draw, avoiding search instability right at
// the clock boundary.
func scaleEval(raw int, st *board.State) int {
	raw = raw * st.NonPawnMaterialScale() / 1024
	clock := st.HalfMoveClock
	if clock <= 0 {
		return raw
	}
	return raw * (200 - clock) / 200
}
