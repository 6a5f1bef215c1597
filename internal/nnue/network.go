package nnue

import "github.com/hailam/chessplay/internal/board"

// Network is a single-hidden-layer NNUE: a king-bucketed HalfKP feature
// transformer shared by both perspectives, concatenated, activated, and
// reduced by one linear output layer (spec.md §4.D).
type Network struct {
	L1Weights [HalfKPSize][L1Size]int16
	L1Bias    [L1Size]int16

	OutputWeights [L1Size * 2]int8
	OutputBias    int16

	Activation Activation
}

// NewNetwork returns a zero-valued network; load weights or InitRandom before use.
func NewNetwork() *Network {
	return &Network{}
}

// Forward evaluates the network for the given accumulator, ordering the
// side to move's half first (spec.md §4.D "concatenation").
func (n *Network) Forward(acc *Accumulator, sideToMove board.Color) int {
	var stm, nstm *[L1Size]int16
	if sideToMove == board.White {
		stm, nstm = &acc.Values[board.White], &acc.Values[board.Black]
	} else {
		stm, nstm = &acc.Values[board.Black], &acc.Values[board.White]
	}

	var output int32 = int32(n.OutputBias)
	for i := 0; i < L1Size; i++ {
		output += int32(activate(stm[i], n.Activation)) * int32(n.OutputWeights[i])
	}
	for i := 0; i < L1Size; i++ {
		output += int32(activate(nstm[i], n.Activation)) * int32(n.OutputWeights[L1Size+i])
	}

	return int(output * OutputScale >> (InputQuantShift + OutputQuantShift))
}

// InitRandom fills the network with small reproducible pseudo-random
// weights — development/testing fallback only, never the shipped eval.
func (n *Network) InitRandom(seed int64) {
	state := uint64(seed)
	next := func() int16 {
		state = state*6364136223846793005 + 1442695040888963407
		return int16((state>>48)&0xFF) - 128
	}

	for i := 0; i < HalfKPSize; i++ {
		for j := 0; j < L1Size; j++ {
			n.L1Weights[i][j] = next() >> 5
		}
	}
	for i := 0; i < L1Size; i++ {
		n.L1Bias[i] = next() >> 3
	}
	for i := 0; i < L1Size*2; i++ {
		n.OutputWeights[i] = int8(next() >> 6)
	}
	n.OutputBias = next()
}
