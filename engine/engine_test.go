package engine

import (
	"testing"

	sedma "go-sedma"
)

func TestNewDealConservesCards(t *testing.T) {
	g := New(1, 3)
	g.Deal(CardsEach)
	g.PickStart()

	if got := g.Conserved(); got != DeckSize {
		t.Errorf("Conserved() = %d, want %d", got, DeckSize)
	}
	for p := 0; p < 3; p++ {
		if g.HandCount(p) != CardsEach {
			t.Errorf("player %d has %d cards, want %d", p, g.HandCount(p), CardsEach)
		}
	}
}

func TestActiveSuitValidAfterPickStart(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		g := New(seed, 2)
		g.Deal(CardsEach)
		g.PickStart()
		switch g.ActiveSuit {
		case sedma.Spades, sedma.Hearts, sedma.Diamonds, sedma.Clubs:
		default:
			t.Fatalf("seed %d: ActiveSuit = %v, not a real suit", seed, g.ActiveSuit)
		}
		if g.TopCard.Rank() == sedma.Queen || g.TopCard.Rank() == sedma.Seven || g.TopCard.Rank() == sedma.Ace {
			t.Fatalf("seed %d: TopCard %v is a special rank", seed, g.TopCard)
		}
	}
}

func TestPlayRequiresTurn(t *testing.T) {
	g := New(7, 2)
	g.Deal(CardsEach)
	g.PickStart()
	g.TurnPos = 0

	card := g.Hand(1)[0]
	_, err := g.Play(1, card, 0, false)
	if err != ErrNotYourTurn {
		t.Errorf("Play out of turn = %v, want ErrNotYourTurn", err)
	}
}

func TestPlayRequiresHeldCard(t *testing.T) {
	g := New(7, 2)
	g.Deal(CardsEach)
	g.PickStart()
	g.TurnPos = 0

	var missing sedma.Card
	for c := 0; c < 32; c++ {
		card := sedma.Card(c)
		if _, held := g.holds(0, card); !held {
			missing = card
			break
		}
	}
	if _, err := g.Play(0, missing, 0, false); err != ErrNoSuchCard {
		t.Errorf("Play(unheld card) = %v, want ErrNoSuchCard", err)
	}
}

func TestSevenAddsPenaltyAndMustStack(t *testing.T) {
	g := &Game{
		players:    2,
		hands:      make([][MaxHand]sedma.Card, 2),
		handCount:  make([]int, 2),
		ActiveSuit: sedma.Spades,
		Running:    true,
	}
	sevenSpades := sedma.MakeCard(sedma.Spades, sedma.Seven)
	eightSpades := sedma.MakeCard(sedma.Spades, sedma.Eight)
	g.hands[0][0] = sevenSpades
	// A second card keeps player 0's play of the seven from ending the game.
	g.hands[0][1] = sedma.MakeCard(sedma.Clubs, sedma.King)
	g.handCount[0] = 2
	g.hands[1][0] = eightSpades
	g.handCount[1] = 1
	g.TopCard = sedma.MakeCard(sedma.Hearts, sedma.Nine)

	res, err := g.Play(0, sevenSpades, 0, false)
	if err != nil {
		t.Fatalf("Play(seven): %v", err)
	}
	if res.AddedPenalty != 2 || g.Penalty != 2 {
		t.Errorf("penalty = %d (added %d), want 2", g.Penalty, res.AddedPenalty)
	}

	if _, err := g.Play(1, eightSpades, 0, false); err != ErrMustStackOrDraw {
		t.Errorf("Play(non-seven under penalty) = %v, want ErrMustStackOrDraw", err)
	}
}

func TestDrawUnderPenaltyClearsIt(t *testing.T) {
	g := New(3, 2)
	g.Deal(CardsEach)
	g.PickStart()
	g.Penalty = 2
	g.TurnPos = 0
	before := g.HandCount(0)

	dr, err := g.Draw(0)
	if err != nil {
		t.Fatal(err)
	}
	if dr.Drawn != 2 {
		t.Errorf("Drawn = %d, want 2", dr.Drawn)
	}
	if g.Penalty != 0 {
		t.Errorf("Penalty = %d, want 0 after draw", g.Penalty)
	}
	if g.HandCount(0) != before+2 {
		t.Errorf("hand count = %d, want %d", g.HandCount(0), before+2)
	}
	if g.TurnPos != 1 {
		t.Errorf("TurnPos = %d, want 1 (advanced)", g.TurnPos)
	}
}

func TestQueenRequiresWish(t *testing.T) {
	g := &Game{
		players:    2,
		hands:      make([][MaxHand]sedma.Card, 2),
		handCount:  make([]int, 2),
		ActiveSuit: sedma.Spades,
		Running:    true,
	}
	queen := sedma.MakeCard(sedma.Hearts, sedma.Queen)
	g.hands[0][0] = queen
	g.handCount[0] = 1
	g.TopCard = sedma.MakeCard(sedma.Spades, sedma.Nine)

	if _, err := g.Play(0, queen, 0, false); err != ErrWishRequired {
		t.Errorf("Play(queen, no wish) = %v, want ErrWishRequired", err)
	}
	if _, err := g.Play(0, queen, 9, true); err != ErrBadWish {
		t.Errorf("Play(queen, bad wish) = %v, want ErrBadWish", err)
	}

	res, err := g.Play(0, queen, sedma.Diamonds, true)
	if err != nil {
		t.Fatalf("Play(queen, valid wish): %v", err)
	}
	_ = res
	if g.ActiveSuit != sedma.Diamonds {
		t.Errorf("ActiveSuit = %v, want Diamonds", g.ActiveSuit)
	}
}

func TestLastCardEndsGame(t *testing.T) {
	g := &Game{
		players:    2,
		hands:      make([][MaxHand]sedma.Card, 2),
		handCount:  make([]int, 2),
		ActiveSuit: sedma.Spades,
		Running:    true,
	}
	last := sedma.MakeCard(sedma.Spades, sedma.Eight)
	g.hands[0][0] = last
	g.handCount[0] = 1
	g.TopCard = sedma.MakeCard(sedma.Spades, sedma.Nine)

	res, err := g.Play(0, last, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Ended || res.Winner != 0 {
		t.Errorf("res = %+v, want Ended=true Winner=0", res)
	}
	if !g.Ended || g.Winner != 0 {
		t.Errorf("g.Ended=%v g.Winner=%d, want true/0", g.Ended, g.Winner)
	}
	if g.TurnPos != 0 {
		t.Errorf("TurnPos = %d, should not advance past a winning play", g.TurnPos)
	}
}

func TestDeckRecyclingKeepsConservation(t *testing.T) {
	g := New(42, 2)
	g.Deal(CardsEach)
	g.PickStart()

	// Force many draws to exhaust the deck and trigger recycling
	// repeatedly; Conserved must hold after every one.
	for i := 0; i < 50; i++ {
		pos := g.TurnPos
		if _, err := g.Draw(pos); err != nil {
			t.Fatalf("Draw: %v", err)
		}
		if got := g.Conserved(); got != DeckSize {
			t.Fatalf("iteration %d: Conserved() = %d, want %d", i, got, DeckSize)
		}
	}
}
