// Package bot is the local computer opponent: it picks a uniform-random
// legal cell after a short think delay. Also drives both sides of the
// demo mode.
package bot

import (
	"math/rand"
	"time"

	"peertactoe/internal/game"
)

// ThinkDelay is how long the bot pretends to think before answering.
const ThinkDelay = 600 * time.Millisecond

type Bot struct {
	rng   *rand.Rand
	delay time.Duration
}

func New() *Bot {
	return &Bot{
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		delay: ThinkDelay,
	}
}

// NewDeterministic fixes the seed and removes the delay; tests use this.
func NewDeterministic(seed int64) *Bot {
	return &Bot{rng: rand.New(rand.NewSource(seed))}
}

// ChooseMove returns a uniform-random empty cell, or ok=false when the
// board is full or the game is over.
func (b *Bot) ChooseMove(s game.State) (int, bool) {
	if game.GetStatus(s) != game.StatusPlaying {
		return 0, false
	}
	moves := game.LegalMoves(s)
	if len(moves) == 0 {
		return 0, false
	}
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	return moves[b.rng.Intn(len(moves))], true
}
