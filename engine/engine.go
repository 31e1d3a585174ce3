// Game rules engine
//
// This file is part of go-sedma.
//
// Pure rules: deck, hands, discard, turn index, penalty counter, active
// suit. No networking, no client references — a Game here is exactly the
// data in spec §3 plus the operations in spec §4.2, grounded on the
// teacher's board.go (Sow/Legal/Over) and game.go (turn bookkeeping),
// recombined into one value type instead of the teacher's split
// Board/Game pair, since Sedma's draw-pile recycling threads discard and
// deck together in a way Kalah's two-pit board never needed to.

package engine

import (
	"errors"
	"math/rand"

	sedma "go-sedma"
)

// MaxHand bounds a player's hand: no player can ever hold more than a
// full deck.
const MaxHand = 32

// DeckSize is the number of distinct cards in a Sedma deck.
const DeckSize = 32

// CardsEach is the number of cards dealt to each player at the start of
// a game.
const CardsEach = 4

// Rule violations surfaced by Play and Draw. The room package translates
// these into wire Fault codes; callers that only need to distinguish
// cases can compare against these sentinels with errors.Is.
var (
	ErrBadState        = errors.New("game not running")
	ErrNotYourTurn     = errors.New("not your turn")
	ErrNoSuchCard      = errors.New("player does not hold that card")
	ErrIllegalCard     = errors.New("card does not match suit or rank")
	ErrWishRequired    = errors.New("queen requires a wish")
	ErrBadWish         = errors.New("wish is not a suit")
	ErrMustStackOrDraw = errors.New("must play a seven or draw")
)

// Game is one room's card table.
type Game struct {
	rng *rand.Rand

	Running bool
	Ended   bool
	Winner  int

	// deck[0:deckLen] holds the live draw pile; deckTop is the next card
	// to serve. Cards below deckTop have already been dealt out.
	deck    [DeckSize]sedma.Card
	deckLen int
	deckTop int

	discard    [DeckSize]sedma.Card
	discardTop int

	players   int
	hands     [][MaxHand]sedma.Card
	handCount []int

	TopCard    sedma.Card
	ActiveSuit sedma.Suit
	Penalty    int
	TurnPos    int
}

// New builds an un-dealt, shuffled game for the given number of players,
// seeded per spec §9 ("RNG") with an explicit seed rather than the global
// generator so tests and deck-recycling are reproducible.
func New(seed int64, players int) *Game {
	g := &Game{
		rng:       rand.New(rand.NewSource(seed)),
		players:   players,
		hands:     make([][MaxHand]sedma.Card, players),
		handCount: make([]int, players),
	}
	for i := range g.deck {
		g.deck[i] = sedma.Card(i)
	}
	g.rng.Shuffle(len(g.deck), func(i, j int) {
		g.deck[i], g.deck[j] = g.deck[j], g.deck[i]
	})
	g.deckLen = DeckSize
	g.Running = true
	return g
}

// HandCount returns how many cards player pos currently holds.
func (g *Game) HandCount(pos int) int {
	return g.handCount[pos]
}

// Hand returns a copy of player pos's hand.
func (g *Game) Hand(pos int) []sedma.Card {
	out := make([]sedma.Card, g.handCount[pos])
	copy(out, g.hands[pos][:g.handCount[pos]])
	return out
}

// Conserved reports the cards left in the draw pile (deckLen - deckTop)
// + Σ hand_count + discard_top, which spec §8 requires to equal 32
// between operations.
func (g *Game) Conserved() int {
	total := (g.deckLen - g.deckTop) + g.discardTop
	for _, n := range g.handCount {
		total += n
	}
	return total
}

// drawOne implements spec §4.2's draw_one: serve from the deck while it
// has cards, otherwise recycle the discard pile (keeping its top card in
// place) and reshuffle with a fresh seed. Returns sedma.NoCard if both
// piles are down to the single kept card.
func (g *Game) drawOne() sedma.Card {
	if g.deckTop < g.deckLen {
		c := g.deck[g.deckTop]
		g.deckTop++
		return c
	}
	return g.recycle()
}

// recycle folds the discard pile (minus its top card) back into the
// deck and reshuffles it with a fresh seed, per spec §4.2.
func (g *Game) recycle() sedma.Card {
	if g.discardTop <= 1 {
		return sedma.NoCard
	}

	kept := g.discard[g.discardTop-1]
	n := g.discardTop - 1

	var fresh [DeckSize]sedma.Card
	copy(fresh[:n], g.discard[:n])

	g.discard[0] = kept
	g.discardTop = 1

	g.rng = rand.New(rand.NewSource(g.rng.Int63()))
	g.rng.Shuffle(n, func(i, j int) {
		fresh[i], fresh[j] = fresh[j], fresh[i]
	})

	copy(g.deck[:n], fresh[:n])
	g.deckLen = n
	g.deckTop = 0

	return g.drawOne()
}

func (g *Game) pushDiscard(c sedma.Card) {
	g.discard[g.discardTop] = c
	g.discardTop++
}

// Deal deals cardsEach cards to each player in order, stopping a
// player's deal early if the deck (and any recycling) is exhausted.
func (g *Game) Deal(cardsEach int) {
	for p := 0; p < g.players; p++ {
		for i := 0; i < cardsEach; i++ {
			c := g.drawOne()
			if c == sedma.NoCard {
				return
			}
			g.hands[p][g.handCount[p]] = c
			g.handCount[p]++
		}
	}
}

// PickStart draws the opening discard-pile card per spec §4.2: special
// ranks (Q, 7, A) are pushed aside and drawn past, the first ordinary
// card becomes the starting top card and active suit.
func (g *Game) PickStart() {
	for {
		c := g.drawOne()
		if c == sedma.NoCard {
			return
		}
		g.pushDiscard(c)
		switch c.Rank() {
		case sedma.Queen, sedma.Seven, sedma.Ace:
			continue
		default:
			g.TopCard = c
			g.ActiveSuit = c.Suit()
			return
		}
	}
}

func (g *Game) holds(pos int, card sedma.Card) (int, bool) {
	for i := 0; i < g.handCount[pos]; i++ {
		if g.hands[pos][i] == card {
			return i, true
		}
	}
	return 0, false
}

func (g *Game) removeFromHand(pos, idx int) {
	n := g.handCount[pos]
	copy(g.hands[pos][idx:n-1], g.hands[pos][idx+1:n])
	g.handCount[pos]--
}

// PlayResult reports the effects of a successful Play, for the room
// manager to broadcast.
type PlayResult struct {
	AddedPenalty int
	Ended        bool
	Winner       int
}

// Play applies spec §4.2's play legality and effects. pos is the
// player's seat, wish is only consulted when card is a Queen.
func (g *Game) Play(pos int, card sedma.Card, wish sedma.Suit, wishGiven bool) (*PlayResult, error) {
	if !g.Running || g.Ended {
		return nil, ErrBadState
	}
	if pos != g.TurnPos {
		return nil, ErrNotYourTurn
	}
	idx, ok := g.holds(pos, card)
	if !ok {
		return nil, ErrNoSuchCard
	}

	if g.Penalty > 0 {
		if card.Rank() != sedma.Seven {
			return nil, ErrMustStackOrDraw
		}
	} else if card.Rank() == sedma.Queen {
		if !wishGiven {
			return nil, ErrWishRequired
		}
		if wish != sedma.Spades && wish != sedma.Hearts && wish != sedma.Diamonds && wish != sedma.Clubs {
			return nil, ErrBadWish
		}
	} else if card.Suit() != g.ActiveSuit && card.Rank() != g.TopCard.Rank() {
		return nil, ErrIllegalCard
	}

	g.removeFromHand(pos, idx)
	g.pushDiscard(card)
	g.TopCard = card

	res := &PlayResult{}
	skipNext := false

	switch card.Rank() {
	case sedma.Queen:
		g.ActiveSuit = wish
	case sedma.Seven:
		g.ActiveSuit = card.Suit()
		g.Penalty += 2
		res.AddedPenalty = 2
	case sedma.Ace:
		g.ActiveSuit = card.Suit()
		skipNext = true
	default:
		g.ActiveSuit = card.Suit()
	}

	if g.handCount[pos] == 0 {
		g.Ended = true
		g.Winner = pos
		res.Ended = true
		res.Winner = pos
		return res, nil
	}

	g.advanceTurn()
	if skipNext {
		g.advanceTurn()
	}
	return res, nil
}

func (g *Game) advanceTurn() {
	g.TurnPos = (g.TurnPos + 1) % g.players
}

// RemovePlayer implements the game-state half of spec §4.3's mid-game
// removal: shift hands[removed+1..] and hand_count[removed+1..] left,
// zero the vacated trailing slot, and adjust turn_pos. The room manager
// is responsible for shifting its own players[] roster and host index in
// lockstep; this only touches engine-owned state.
func (g *Game) RemovePlayer(pos int) {
	for p := pos; p < g.players-1; p++ {
		g.hands[p] = g.hands[p+1]
		g.handCount[p] = g.handCount[p+1]
	}
	g.hands[g.players-1] = [MaxHand]sedma.Card{}
	g.handCount[g.players-1] = 0
	g.players--

	if g.TurnPos > pos {
		g.TurnPos--
	}
	if g.players > 0 {
		g.TurnPos %= g.players
	} else {
		g.TurnPos = 0
	}
}

// Players returns the current seat count (it shrinks as players are
// removed mid-game).
func (g *Game) Players() int {
	return g.players
}

// DrawResult reports how many cards were actually drawn.
type DrawResult struct {
	Drawn int
}

// Draw applies spec §4.2's draw effects: draw penalty-or-one cards,
// clear the penalty, and always advance the turn (no skip).
func (g *Game) Draw(pos int) (*DrawResult, error) {
	if !g.Running || g.Ended {
		return nil, ErrBadState
	}
	if pos != g.TurnPos {
		return nil, ErrNotYourTurn
	}

	n := 1
	if g.Penalty > 0 {
		n = g.Penalty
	}

	drawn := 0
	for i := 0; i < n; i++ {
		if g.handCount[pos] >= MaxHand {
			break
		}
		c := g.drawOne()
		if c == sedma.NoCard {
			break
		}
		g.hands[pos][g.handCount[pos]] = c
		g.handCount[pos]++
		drawn++
	}

	g.Penalty = 0
	g.advanceTurn()

	return &DrawResult{Drawn: drawn}, nil
}
