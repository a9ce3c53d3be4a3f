// internal/game/game.go
package game

import (
	"math/rand"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kabulhq/kabul/internal/cache"
	"github.com/kabulhq/kabul/internal/models"
	"github.com/kabulhq/kabul/internal/store"
)

// Phase is the coarse game lifecycle. Transitions are one-directional and
// terminate at PhaseEnded.
type Phase int

const (
	PhaseWaiting Phase = iota
	PhaseMemorize
	PhasePlaying
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "waiting"
	case PhaseMemorize:
		return "memorize"
	case PhasePlaying:
		return "playing"
	case PhaseEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// TurnStage is the per-turn sub-phase within PhasePlaying.
type TurnStage int

const (
	StageDrawing TurnStage = iota
	StageDiscarding
	StageAbility
)

func (s TurnStage) String() string {
	switch s {
	case StageDrawing:
		return "drawing"
	case StageDiscarding:
		return "discarding"
	case StageAbility:
		return "ability"
	default:
		return "unknown"
	}
}

// drawnCard is the at-most-one pending drawn card record. It only ever
// belongs to the player whose turn it is.
type drawnCard struct {
	OwnerID uuid.UUID
	Card    *models.Card
}

// OnGameEndFunc receives the final results when a game reaches PhaseEnded.
type OnGameEndFunc func(gameID uuid.UUID, winner uuid.UUID, scores map[uuid.UUID]int)

// KabulGame holds the single authoritative state for one room. Each room
// gets its own instance; nothing is shared across rooms.
type KabulGame struct {
	ID uuid.UUID

	Ruleset Ruleset
	Rules   RoomRules

	Players []*models.Player // fixed turn order, set at creation

	deck    []*models.Card // server-only; never leaves this process
	discard *discardPile

	Phase              Phase
	Stage              TurnStage
	CurrentPlayerIndex int
	TurnID             int

	drawn   *drawnCard
	pending *pendingAbility

	KabulCallerID       uuid.UUID // Nil until Kabul is called
	FinalTurnsRemaining int
	WinnerID            uuid.UUID
	FinalScores         map[uuid.UUID]int

	mu  sync.Mutex
	rng *rand.Rand
	log logrus.FieldLogger

	// BroadcastFn sends an event to every connected player.
	BroadcastFn func(ev GameEvent)
	// BroadcastToPlayerFn sends an event to a single player's private channel.
	BroadcastToPlayerFn func(playerID uuid.UUID, ev GameEvent)
	// OnGameEnd is invoked once, after scoring.
	OnGameEnd OnGameEndFunc

	// Store, when set, receives the public room document and each player's
	// masked view after every committed action. The deck is never written.
	Store store.DocumentStore
	// History, when set, receives an ordered record of every action.
	History *cache.ActionLogger

	memorizeTimer *time.Timer
	turnTimer     *time.Timer
	deferred      map[uuid.UUID]*time.Timer // scheduled expiries keyed by instance id

	// pubMu serializes store writers; pubSeq/pubDone drop snapshots that
	// were superseded before their writer ran.
	pubMu   sync.Mutex
	pubSeq  uint64
	pubDone uint64

	actionIndex int
}

// NewKabulGame builds a game from the seated roster, in seat order. The
// roster comes from the room service; the engine does not manage joining.
func NewKabulGame(seats []models.Seat, rs Ruleset) *KabulGame {
	id := uuid.New()
	g := &KabulGame{
		ID:       id,
		Ruleset:  rs,
		Rules:    DefaultRoomRules(),
		Phase:    PhaseWaiting,
		Stage:    StageDrawing,
		discard:  &discardPile{},
		deferred: make(map[uuid.UUID]*time.Timer),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		log:      logrus.StandardLogger().WithField("game", id),
	}
	for _, s := range seats {
		g.Players = append(g.Players, &models.Player{
			ID:        s.ID,
			Name:      s.Name,
			Connected: true,
		})
	}
	g.deck = GenerateDeck(rs)
	return g
}

// Seed replaces the random source, for deterministic deals in tests.
// Must be called before Start.
func (g *KabulGame) Seed(seed int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rng = rand.New(rand.NewSource(seed))
}

// Start shuffles, deals 4 cards to each player, privately reveals each
// player's two nearest cards (slots 0 and 1) and opens the memorize window.
// The transition to PhasePlaying is server-driven; no player action can
// trigger it.
func (g *KabulGame) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Phase != PhaseWaiting {
		return
	}
	Shuffle(g.deck, g.rng)
	for _, p := range g.Players {
		p.Hand = make([]*models.Card, 0, 4)
		for i := 0; i < 4; i++ {
			p.Hand = append(p.Hand, g.deck[0])
			g.deck = g.deck[1:]
		}
	}
	g.Phase = PhaseMemorize
	g.logAction(uuid.Nil, "game_memorize_start", nil)
	g.fireEvent(GameEvent{Type: EventGamePhase, Payload: map[string]any{"phase": g.Phase.String()}})

	for _, p := range g.Players {
		idx0, idx1 := 0, 1
		g.fireEventToPlayer(p.ID, GameEvent{
			Type:  EventPrivateInitial,
			Card1: fullCard(p.Hand[0], &idx0),
			Card2: fullCard(p.Hand[1], &idx1),
		})
	}
	g.publishState()

	d := time.Duration(g.Rules.MemorizeSec) * time.Second
	g.memorizeTimer = time.AfterFunc(d, g.BeginPlay)
}

// BeginPlay closes the memorize window and starts the first turn. Exposed
// so tests can skip the timer; calling it twice is harmless.
func (g *KabulGame) BeginPlay() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Phase != PhaseMemorize {
		return
	}
	if g.memorizeTimer != nil {
		g.memorizeTimer.Stop()
		g.memorizeTimer = nil
	}
	g.Phase = PhasePlaying
	g.Stage = StageDrawing
	g.TurnID = 1
	g.log.Infof("game started with %d players", len(g.Players))
	g.logAction(uuid.Nil, "game_start", nil)
	g.fireEvent(GameEvent{Type: EventGamePhase, Payload: map[string]any{"phase": g.Phase.String()}})
	g.scheduleTurnTimer()
	g.broadcastPlayerTurn()
	g.publishState()
}

// handleDraw moves the top card of the chosen source into the drawn slot.
// Assumes lock is held.
func (g *KabulGame) handleDraw(playerID uuid.UUID, fromDiscard bool) (models.Result, error) {
	// The pending-drawn check runs first so a double draw reports the
	// sharper reason; the stage check would otherwise shadow it.
	if g.drawn != nil {
		return models.Result{}, ErrAlreadyDrawn
	}
	if g.Stage != StageDrawing {
		return models.Result{}, ErrWrongStage
	}

	var card *models.Card
	if fromDiscard {
		card = g.discard.pop()
		if card == nil {
			return models.Result{}, ErrDiscardEmpty
		}
	} else {
		if len(g.deck) == 0 {
			return models.Result{}, ErrDeckEmpty
		}
		card = g.deck[0]
		g.deck = g.deck[1:]
	}

	g.drawn = &drawnCard{OwnerID: playerID, Card: card}
	g.Stage = StageDiscarding

	// Public event carries the id only for deck draws; a discard draw was
	// already face up, so its identity stays public.
	pub := obfCardID(card, nil)
	source := "deck"
	if fromDiscard {
		pub = fullCard(card, nil)
		source = "discard"
	}
	g.fireEvent(GameEvent{
		Type: EventPlayerDrawDeck,
		User: &EventUser{ID: playerID},
		Card: pub,
		Payload: map[string]any{
			"source":   source,
			"deckSize": len(g.deck),
		},
	})
	g.fireEventToPlayer(playerID, GameEvent{
		Type:    EventPrivateDrawn,
		Card:    fullCard(card, nil),
		Payload: map[string]any{"source": source},
	})
	g.logAction(playerID, "action_draw", map[string]any{"source": source, "cardId": card.ID})
	g.scheduleTurnTimer()
	g.publishState()

	return models.Result{Action: models.ActionDrawDeck, Payload: map[string]any{"source": source}}, nil
}

// handleDiscardDrawn discards the pending drawn card with no hand change.
// Assumes lock is held.
func (g *KabulGame) handleDiscardDrawn(playerID uuid.UUID) (models.Result, error) {
	if g.Stage != StageDiscarding || g.drawn == nil || g.drawn.OwnerID != playerID {
		return models.Result{}, ErrNothingDrawn
	}
	card := g.drawn.Card
	g.drawn = nil
	g.discard.push(card)

	g.fireEvent(GameEvent{
		Type: EventPlayerDiscard,
		User: &EventUser{ID: playerID},
		Card: fullCard(card, nil),
	})
	g.logAction(playerID, "action_discard_drawn", map[string]any{"cardId": card.ID})

	return g.afterDiscard(playerID, card, models.ActionDiscardDrawn)
}

// handleSwap swaps the drawn card into the given hand slot; the displaced
// card becomes the new discard top. Assumes lock is held.
func (g *KabulGame) handleSwap(playerID uuid.UUID, handIndex int) (models.Result, error) {
	if g.Stage != StageDiscarding || g.drawn == nil || g.drawn.OwnerID != playerID {
		return models.Result{}, ErrNothingDrawn
	}
	player := g.playerByID(playerID)
	if player == nil {
		return models.Result{}, ErrPlayerNotFound
	}
	if handIndex < 0 || handIndex >= len(player.Hand) {
		return models.Result{}, ErrIndexOutOfRange
	}

	displaced := player.Hand[handIndex]
	player.Hand[handIndex] = g.drawn.Card
	g.drawn = nil
	g.discard.push(displaced)

	idx := handIndex
	g.fireEvent(GameEvent{
		Type:  EventPlayerSwap,
		User:  &EventUser{ID: playerID},
		Card:  fullCard(displaced, &idx), // leaving card is face up on the pile
		Card1: obfCardID(player.Hand[handIndex], &idx),
	})
	g.logAction(playerID, "action_swap", map[string]any{"cardId": displaced.ID, "idx": handIndex})

	return g.afterDiscard(playerID, displaced, models.ActionSwapCard)
}

// afterDiscard opens the ability stage when the card that just hit the pile
// carries one, otherwise completes the turn. Assumes lock is held.
func (g *KabulGame) afterDiscard(playerID uuid.UUID, card *models.Card, action models.ActionType) (models.Result, error) {
	payload := map[string]any{"discarded": card.Label()}
	if card.Ability != models.AbilityNone {
		g.openAbility(playerID, card.Ability)
		payload["ability"] = card.Ability.String()
	} else {
		g.advanceTurn()
	}
	return models.Result{Action: action, Payload: payload}, nil
}

// handleCallKabul freezes the caller's hand and arms the final countdown.
// Legal only for the turn holder, in StageDrawing, before any draw.
// Assumes lock is held.
func (g *KabulGame) handleCallKabul(playerID uuid.UUID) (models.Result, error) {
	if g.Stage != StageDrawing || g.drawn != nil {
		return models.Result{}, ErrWrongStage
	}
	if g.KabulCallerID != uuid.Nil {
		return models.Result{}, ErrKabulCalled
	}
	player := g.playerByID(playerID)
	if player == nil {
		return models.Result{}, ErrPlayerNotFound
	}

	player.HasCalledKabul = true
	g.KabulCallerID = playerID
	g.FinalTurnsRemaining = len(g.Players) - 1

	g.log.WithField("player", playerID).Info("kabul called")
	g.logAction(playerID, "action_call_kabul", nil)
	g.fireEvent(GameEvent{
		Type:    EventPlayerKabul,
		User:    &EventUser{ID: playerID},
		Payload: map[string]any{"finalTurnsRemaining": g.FinalTurnsRemaining},
	})

	// The caller's own turn completes without decrementing the counter.
	g.advanceTurn()
	return models.Result{
		Action:  models.ActionCallKabul,
		Payload: map[string]any{"finalTurnsRemaining": g.FinalTurnsRemaining},
	}, nil
}

// advanceTurn completes the current player's turn: it runs the Kabul
// countdown, selects the next player (always skipping the frozen caller)
// and resets the stage. Assumes lock is held.
func (g *KabulGame) advanceTurn() {
	if g.Phase != PhasePlaying {
		return
	}

	completing := g.Players[g.CurrentPlayerIndex]
	if g.KabulCallerID != uuid.Nil && completing.ID != g.KabulCallerID {
		g.FinalTurnsRemaining--
		if g.FinalTurnsRemaining <= 0 {
			g.endGame()
			return
		}
	}

	g.TurnID++
	g.drawn = nil
	g.Stage = StageDrawing

	next := (g.CurrentPlayerIndex + 1) % len(g.Players)
	for g.Players[next].ID == g.KabulCallerID {
		next = (next + 1) % len(g.Players)
	}
	g.CurrentPlayerIndex = next

	g.scheduleTurnTimer()
	g.broadcastPlayerTurn()
	g.publishState()
}

// scheduleTurnTimer (re)arms the per-turn deadline. A stale callback is
// detected by comparing the captured TurnID under the lock, the same way
// ability expiries are keyed by instance id. Assumes lock is held.
func (g *KabulGame) scheduleTurnTimer() {
	if g.Rules.TurnTimerSec <= 0 {
		return
	}
	if g.turnTimer != nil {
		g.turnTimer.Stop()
	}
	playerID := g.Players[g.CurrentPlayerIndex].ID
	turnID := g.TurnID

	g.turnTimer = time.AfterFunc(time.Duration(g.Rules.TurnTimerSec)*time.Second, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.Phase != PhasePlaying || g.TurnID != turnID {
			return
		}
		g.log.WithField("player", playerID).Warn("turn deadline reached")
		g.handleTurnTimeout(playerID)
	})
}

// handleTurnTimeout force-completes a stalled turn: a pending ability is
// skipped, a held drawn card is discarded, and an untouched turn draws and
// discards. Timeout discards never open abilities. Assumes lock is held.
func (g *KabulGame) handleTurnTimeout(playerID uuid.UUID) {
	g.logAction(playerID, "player_timeout", nil)

	if g.pending != nil && g.pending.PlayerID == playerID {
		g.skipAbility("timeout")
		return
	}

	var card *models.Card
	if g.drawn != nil && g.drawn.OwnerID == playerID {
		card = g.drawn.Card
		g.drawn = nil
	} else if len(g.deck) > 0 {
		card = g.deck[0]
		g.deck = g.deck[1:]
	}
	if card != nil {
		g.discard.push(card)
		g.fireEvent(GameEvent{
			Type:    EventPlayerDiscard,
			User:    &EventUser{ID: playerID},
			Card:    fullCard(card, nil),
			Payload: map[string]any{"timeout": true},
		})
	}
	g.advanceTurn()
}

// endGame scores every hand, picks the winner and seals the room.
// Assumes lock is held.
func (g *KabulGame) endGame() {
	if g.Phase == PhaseEnded {
		return
	}
	g.Phase = PhaseEnded
	g.stopTimers()

	// A card still held in the drawn slot goes back to the pile so the
	// 54-card total survives an end mid-turn.
	if g.drawn != nil {
		g.discard.push(g.drawn.Card)
		g.drawn = nil
	}

	g.FinalScores = make(map[uuid.UUID]int, len(g.Players))
	for _, p := range g.Players {
		sum := 0
		for _, c := range p.Hand {
			sum += c.Value
		}
		score := sum
		p.FinalScore = &score
		g.FinalScores[p.ID] = sum
	}

	// Lowest total wins; on a tie the first player in turn order takes it.
	winner := g.Players[0]
	for _, p := range g.Players[1:] {
		if g.FinalScores[p.ID] < g.FinalScores[winner.ID] {
			winner = p
		}
	}
	g.WinnerID = winner.ID

	scores := map[string]int{}
	for id, s := range g.FinalScores {
		scores[id.String()] = s
	}
	g.log.WithFields(logrus.Fields{"winner": g.WinnerID, "scores": scores}).Info("game ended")
	g.logAction(uuid.Nil, "game_end", map[string]any{"winner": g.WinnerID, "scores": scores})
	g.fireEvent(GameEvent{
		Type: EventGameEnd,
		Payload: map[string]any{
			"winner": g.WinnerID.String(),
			"caller": g.KabulCallerID.String(),
			"scores": scores,
		},
	})
	g.publishState()

	if g.OnGameEnd != nil {
		g.OnGameEnd(g.ID, g.WinnerID, g.FinalScores)
	}
}

// ForceEnd seals a room that reached an unrecoverable state rather than
// leaving it in limbo.
func (g *KabulGame) ForceEnd(reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Phase == PhaseEnded {
		return
	}
	g.log.WithField("reason", reason).Error("forcing game end")
	g.logAction(uuid.Nil, "game_force_end", map[string]any{"reason": reason})
	g.endGame()
}

// stopTimers cancels every outstanding scheduled task. Assumes lock is held.
func (g *KabulGame) stopTimers() {
	if g.memorizeTimer != nil {
		g.memorizeTimer.Stop()
		g.memorizeTimer = nil
	}
	if g.turnTimer != nil {
		g.turnTimer.Stop()
		g.turnTimer = nil
	}
	for id, t := range g.deferred {
		t.Stop()
		delete(g.deferred, id)
	}
}

// scheduleDeferred arms a cancellable task keyed by instance id. The
// callback only runs if the instance is still registered when it fires,
// so a cancelled task can never act on superseded state.
// Assumes lock is held.
func (g *KabulGame) scheduleDeferred(id uuid.UUID, d time.Duration, fn func()) {
	g.deferred[id] = time.AfterFunc(d, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if _, ok := g.deferred[id]; !ok {
			return // cancelled or already superseded
		}
		delete(g.deferred, id)
		fn()
	})
}

// cancelDeferred stops and forgets a scheduled task. Assumes lock is held.
func (g *KabulGame) cancelDeferred(id uuid.UUID) {
	if t, ok := g.deferred[id]; ok {
		t.Stop()
		delete(g.deferred, id)
	}
}

// broadcastPlayerTurn notifies all players whose turn it is now.
// Assumes lock is held.
func (g *KabulGame) broadcastPlayerTurn() {
	g.fireEvent(GameEvent{
		Type: EventPlayerTurn,
		User: &EventUser{ID: g.Players[g.CurrentPlayerIndex].ID},
		Payload: map[string]any{
			"turn":  g.TurnID,
			"stage": g.Stage.String(),
		},
	})
}

// fireEvent broadcasts to every connected player. Assumes lock is held.
func (g *KabulGame) fireEvent(ev GameEvent) {
	if g.BroadcastFn != nil {
		g.BroadcastFn(ev)
	}
}

// fireEventToPlayer sends over a single player's private channel.
// Assumes lock is held.
func (g *KabulGame) fireEventToPlayer(playerID uuid.UUID, ev GameEvent) {
	if g.BroadcastToPlayerFn != nil {
		g.BroadcastToPlayerFn(playerID, ev)
	}
}

// playerByID finds a seated player. Assumes lock is held.
func (g *KabulGame) playerByID(playerID uuid.UUID) *models.Player {
	for _, p := range g.Players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

// CardCount returns the total cards across deck, discard pile and hands.
// It must equal DeckSize at every observable state.
func (g *KabulGame) CardCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := len(g.deck) + g.discard.size()
	if g.drawn != nil {
		n++ // the pending drawn card lives in no container
	}
	for _, p := range g.Players {
		n += len(p.Hand)
	}
	return n
}

// DeckSizeLeft reports the remaining deck size.
func (g *KabulGame) DeckSizeLeft() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.deck)
}

// DiscardTop returns the face-up top of the discard pile, or nil.
func (g *KabulGame) DiscardTop() *models.Card {
	top, _, _ := g.discard.snapshot()
	return top
}

// CurrentPlayerID returns the id of the turn holder.
func (g *KabulGame) CurrentPlayerID() uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Players[g.CurrentPlayerIndex].ID
}

// HandleDisconnect flags a player as disconnected. The roster is fixed, so
// the seat stays; the turn machine keeps running against the timer.
func (g *KabulGame) HandleDisconnect(playerID uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p := g.playerByID(playerID); p != nil {
		p.Connected = false
		p.Conn = nil
		g.logAction(playerID, "player_disconnect", nil)
		g.publishState()
	}
}

// HandleReconnect attaches a player's connection and replays their masked
// view, covering both the initial connect and any reconnect mid-game.
func (g *KabulGame) HandleReconnect(playerID uuid.UUID, conn *websocket.Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p := g.playerByID(playerID); p != nil {
		p.Connected = true
		p.Conn = conn
		g.logAction(playerID, "player_reconnect", nil)
		state := g.maskedStateFor(playerID)
		g.fireEventToPlayer(playerID, GameEvent{Type: EventPrivateSync, State: &state})
	}
}

// Ended reports whether the room reached its terminal phase.
func (g *KabulGame) Ended() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Phase == PhaseEnded
}

// HasPlayer reports whether the id holds a seat in this room.
func (g *KabulGame) HasPlayer(playerID uuid.UUID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.playerByID(playerID) != nil
}

// ConnectionsSnapshot returns the currently attached connections. Broadcast
// helpers grab this under the lock, then write outside it.
func (g *KabulGame) ConnectionsSnapshot() map[uuid.UUID]*websocket.Conn {
	g.mu.Lock()
	defer g.mu.Unlock()
	conns := make(map[uuid.UUID]*websocket.Conn, len(g.Players))
	for _, p := range g.Players {
		if p.Connected && p.Conn != nil {
			conns[p.ID] = p.Conn
		}
	}
	return conns
}

// PlayerConnection returns one player's attached connection, or nil.
func (g *KabulGame) PlayerConnection(playerID uuid.UUID) *websocket.Conn {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p := g.playerByID(playerID); p != nil && p.Connected {
		return p.Conn
	}
	return nil
}

// logAction publishes an ordered action record to the history queue.
// Assumes lock is held.
func (g *KabulGame) logAction(actorID uuid.UUID, actionType string, payload map[string]any) {
	g.actionIndex++
	if g.History == nil {
		return
	}
	rec := cache.ActionRecord{
		GameID:      g.ID,
		ActionIndex: g.actionIndex,
		ActorID:     actorID,
		ActionType:  actionType,
		Payload:     payload,
		Timestamp:   time.Now().UnixMilli(),
	}
	go func() {
		if err := g.History.Publish(rec); err != nil {
			g.log.WithError(err).Warn("action history publish failed")
		}
	}()
}
