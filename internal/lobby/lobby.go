package lobby

import (
	"context"
	"maps"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/DoyleJ11/auction-backend/internal/countdown"
	"github.com/DoyleJ11/auction-backend/internal/engine"
	"github.com/DoyleJ11/auction-backend/internal/hub"
	"github.com/DoyleJ11/auction-backend/internal/metrics"
	"github.com/DoyleJ11/auction-backend/internal/notify"
	"github.com/DoyleJ11/auction-backend/pkg/types"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const MaxNicknameLen = 10

type Msg interface{ isLobbyMsg() }

type Join struct {
	ClientID string
	Outbox   chan types.ServerMessage // where this client wants to receive frames
}

func (Join) isLobbyMsg() {}

type Leave struct{ ClientID string }

func (Leave) isLobbyMsg() {}

type SetNickname struct {
	ClientID string
	Nickname string
}

func (SetNickname) isLobbyMsg() {}

type RequestUserList struct{}

func (RequestUserList) isLobbyMsg() {}

// FromClient is an auction command sent over a live connection. Validation
// failures are answered privately on that connection.
type FromClient struct {
	ClientID string
	Cmd      engine.Command
}

func (FromClient) isLobbyMsg() {}

// Exec applies a command on behalf of the REST surface and replies with the
// outcome.
type Exec struct {
	Cmd   engine.Command
	Reply chan Result
}

func (Exec) isLobbyMsg() {}

type Result struct {
	Events []engine.Event
	Err    error
}

type TimerTick struct{ Tick countdown.Tick }

func (TimerTick) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

// View is a consistent copy of everything the lobby owns.
type View struct {
	NumClients   int
	State        engine.State
	Phase        engine.Phase
	Items        []engine.Item
	Teams        []engine.Team
	FailedItems  []engine.Item
	Captains     map[string]string
	Users        map[string]string
	CountingDown bool
	Countdown    int
	LastResult   *types.AuctionResult
}

// Saver receives a snapshot after every state change. Submit must not block.
type Saver interface {
	Submit(engine.Snapshot)
}

type nopSaver struct{}

func (nopSaver) Submit(engine.Snapshot) {}

type Option func(*Lobby)

func WithClock(c clockwork.Clock) Option { return func(l *Lobby) { l.clock = c } }
func WithTick(d time.Duration) Option { return func(l *Lobby) { l.tick = d } }
func WithCountdown(start int) Option { return func(l *Lobby) { l.countdownStart = start } }
func WithSaver(s Saver) Option { return func(l *Lobby) { l.saver = s } }
func WithPublisher(p notify.Publisher) Option { return func(l *Lobby) { l.publisher = p } }
func WithMetrics(m *metrics.Metrics) Option { return func(l *Lobby) { l.metrics = m } }
func WithLogger(log *zap.Logger) Option { return func(l *Lobby) { l.log = log } }

// Lobby is the single event loop of the auction. Commands, connection
// changes, queries and countdown ticks all arrive on one inbox and are
// handled one at a time.
type Lobby struct {
	inbox   chan Msg
	auction *engine.Auction
	users   map[string]string // client id -> nickname
	hub     *hub.Hub
	timer   *countdown.Scheduler

	countdownStart int
	countingDown   bool
	remaining      int
	lastResult     *types.AuctionResult

	clock     clockwork.Clock
	tick      time.Duration
	saver     Saver
	publisher notify.Publisher
	metrics   *metrics.Metrics
	log       *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewLobby(parent context.Context, a *engine.Auction, opts ...Option) *Lobby {
	ctx, cancel := context.WithCancel(parent)

	l := &Lobby{
		inbox:          make(chan Msg, 64), // Small buffer
		auction:        a,
		users:          make(map[string]string),
		hub:            hub.New(),
		countdownStart: engine.CountdownStart,
		clock:          clockwork.NewRealClock(),
		tick:           time.Second,
		saver:          nopSaver{},
		publisher:      notify.Nop{},
		log:            zap.NewNop(),
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.metrics == nil {
		l.metrics = metrics.New()
	}
	l.timer = countdown.New(l.clock, l.tick, l.emitTick)

	go l.loop()
	return l
}

// Expose the inbox so tests or WS layer can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// Send delivers m unless the lobby has already stopped.
func (l *Lobby) Send(m Msg) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.inbox <- m:
		return true
	case <-l.done:
		return false
	}
}

// Done is closed once the loop has exited.
func (l *Lobby) Done() <-chan struct{} { return l.done }

func (l *Lobby) emitTick(t countdown.Tick) {
	select {
	case l.inbox <- TimerTick{Tick: t}:
	case <-l.ctx.Done():
	}
}

func (l *Lobby) loop() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				l.join(msg)

			case Leave:
				if l.hub.Leave(msg.ClientID) {
					l.disconnect(msg.ClientID)
				}

			case SetNickname:
				l.setNickname(msg)

			case RequestUserList:
				l.broadcastUserList()

			case FromClient:
				l.fromClient(msg)

			case Exec:
				events, err := l.apply(msg.Cmd)
				msg.Reply <- Result{Events: events, Err: err}

			case TimerTick:
				l.onTick(msg.Tick)

			case GetState:
				msg.Reply <- l.view()

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

func (l *Lobby) shutdown() {
	l.timer.Cancel()
	l.hub.CloseAll() // Tell clients no more frames
	l.metrics.Observers.Set(0)
	l.cancel()
}

func (l *Lobby) join(msg Join) {
	l.hub.Join(msg.ClientID, msg.Outbox)
	l.metrics.Observers.Set(float64(l.hub.Len()))
	l.log.Debug("observer joined", zap.String("client", msg.ClientID))

	frames := []types.Payload{
		l.bidUpdate(),
		types.ItemUpdate{Items: l.auction.Items()},
		types.TeamUpdate{Teams: l.auction.Teams()},
		types.CaptainMapUpdate{CaptainMap: l.auction.Captains()},
		l.userList(),
	}
	if l.lastResult != nil {
		frames = append(frames, *l.lastResult)
	}
	if l.countingDown {
		frames = append(frames, types.CountdownUpdate{Value: l.remaining})
	}
	for _, f := range frames {
		if !l.hub.Send(msg.ClientID, f) {
			l.dropped(msg.ClientID)
			return
		}
	}
}

// disconnect forgets a connection that is already out of the hub.
func (l *Lobby) disconnect(id string) {
	delete(l.users, id)
	l.metrics.Observers.Set(float64(l.hub.Len()))
	l.log.Debug("observer left", zap.String("client", id))
	l.broadcastUserList()
	if _, err := l.apply(engine.Command{Type: engine.CmdBidderLeft, ClientID: id}); err != nil {
		l.log.Warn("bidder left", zap.Error(err))
	}
}

func (l *Lobby) dropped(id string) {
	l.metrics.ObserversDropped.Inc()
	l.log.Info("dropping slow observer", zap.String("client", id))
	l.disconnect(id)
}

func (l *Lobby) setNickname(msg SetNickname) {
	nickname := strings.TrimSpace(msg.Nickname)
	if nickname == "" || utf8.RuneCountInString(nickname) > MaxNicknameLen {
		l.sendTo(msg.ClientID, types.SystemMessage{Text: textFor(engine.Command{}, engine.ErrInvalidNickname)})
		return
	}
	if !l.hub.Has(msg.ClientID) {
		return
	}
	l.users[msg.ClientID] = nickname
	l.broadcastUserList()
}

func (l *Lobby) fromClient(msg FromClient) {
	cmd := msg.Cmd
	cmd.ClientID = msg.ClientID
	if cmd.Type == engine.CmdPlaceBid {
		cmd.Nickname = l.users[msg.ClientID]
	}

	events, err := l.apply(cmd)
	switch {
	case err == nil:
	case engine.IsValidation(err):
		l.sendTo(msg.ClientID, types.SystemMessage{Text: textFor(cmd, err)})
		return
	case engine.IsRuleViolation(err):
		l.log.Debug("command ignored",
			zap.String("client", msg.ClientID),
			zap.String("command", string(cmd.Type)),
			zap.Error(err))
		return
	default:
		l.log.Warn("command failed", zap.String("command", string(cmd.Type)), zap.Error(err))
		return
	}

	for _, ev := range events {
		if text, ok := confirmationFor(ev); ok {
			l.sendTo(msg.ClientID, types.SystemMessage{Text: text})
		}
	}
}

// apply runs cmd through the engine, persists the result and tells every
// observer what changed.
func (l *Lobby) apply(cmd engine.Command) ([]engine.Event, error) {
	wasRaffle := l.auction.State().IsRaffleRound
	events, err := l.auction.Apply(cmd)
	l.record(cmd, err)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return events, nil
	}
	l.saver.Submit(l.auction.Snapshot())
	l.dispatch(events, wasRaffle)
	return events, nil
}

func (l *Lobby) record(cmd engine.Command, err error) {
	outcome := "applied"
	switch {
	case engine.IsValidation(err):
		outcome = "invalid"
	case engine.IsRuleViolation(err):
		outcome = "ignored"
	case err != nil:
		outcome = "error"
	}
	l.metrics.Commands.WithLabelValues(string(cmd.Type), outcome).Inc()

	if cmd.Type != engine.CmdPlaceBid {
		return
	}
	if err == nil {
		l.metrics.BidsAccepted.Inc()
		return
	}
	l.metrics.BidsRejected.WithLabelValues(rejectReason(err)).Inc()
}

func (l *Lobby) dispatch(events []engine.Event, wasRaffle bool) {
	for _, ev := range events {
		switch ev.Type {
		case engine.EvtCountdownStopped:
			l.timer.Cancel()
			l.countingDown = false

		case engine.EvtCountdownStarted:
			l.timer.Start(l.countdownStart)
			l.countingDown = true
			l.remaining = l.countdownStart

		case engine.EvtBidChanged:
			l.broadcast(l.bidUpdate())

		case engine.EvtItemsChanged:
			l.broadcast(types.ItemUpdate{Items: l.auction.Items()})

		case engine.EvtTeamsChanged:
			l.broadcast(types.TeamUpdate{Teams: l.auction.Teams()})

		case engine.EvtCaptainsChanged:
			l.broadcast(types.CaptainMapUpdate{CaptainMap: l.auction.Captains()})
			l.broadcastUserList()

		case engine.EvtItemResolved:
			l.resolved(*ev.Result, wasRaffle)

		case engine.EvtReset:
			l.lastResult = nil
			l.broadcast(types.SystemMessage{Text: msgReset})
		}
	}
}

func (l *Lobby) resolved(res engine.SaleResult, raffle bool) {
	out := types.NewAuctionResult(res)
	l.lastResult = &out
	l.broadcast(out)

	outcome := "unsold"
	switch {
	case res.Forced:
		outcome = "forced"
	case res.Sold:
		outcome = "sold"
	}
	l.metrics.ItemsResolved.WithLabelValues(outcome).Inc()
	l.log.Info("item resolved",
		zap.String("item", res.ItemNickname),
		zap.String("winner", res.WinnerTeam),
		zap.Int("final_bid", res.FinalBid),
		zap.Bool("raffle", raffle),
		zap.String("phase", string(engine.DerivePhase(l.auction.State()))))

	if err := l.publisher.Publish(notify.NewSale(res, raffle, l.clock.Now())); err != nil {
		l.metrics.NotifyFailures.Inc()
		l.log.Warn("publish sale", zap.Error(err))
	}
}

func (l *Lobby) onTick(t countdown.Tick) {
	if !l.timer.Current(t.Gen) {
		return // stale fire from a replaced countdown
	}
	l.remaining = t.Remaining
	l.broadcast(types.CountdownUpdate{Value: t.Remaining})
	if !t.Expired {
		return
	}
	if _, err := l.apply(engine.Command{Type: engine.CmdTimeout}); err != nil {
		l.log.Debug("countdown expired with nothing to resolve", zap.Error(err))
	}
}

func (l *Lobby) bidUpdate() types.BidUpdate {
	var current *engine.Item
	if it, ok := l.auction.CurrentItem(); ok {
		current = &it
	}
	return types.NewBidUpdate(l.auction.State(), current)
}

func (l *Lobby) userList() types.UserListUpdate {
	return types.UserListUpdate{
		Users:      slices.Sorted(maps.Values(l.users)),
		CaptainMap: l.auction.Captains(),
	}
}

func (l *Lobby) broadcastUserList() { l.broadcast(l.userList()) }

func (l *Lobby) broadcast(p types.Payload) {
	for _, id := range l.hub.Broadcast(p) {
		l.dropped(id)
	}
}

func (l *Lobby) sendTo(id string, p types.Payload) {
	if !l.hub.Has(id) {
		return
	}
	if !l.hub.Send(id, p) {
		l.dropped(id)
	}
}

func (l *Lobby) view() View {
	return View{
		NumClients:   l.hub.Len(),
		State:        l.auction.State(),
		Phase:        engine.DerivePhase(l.auction.State()),
		Items:        l.auction.Items(),
		Teams:        l.auction.Teams(),
		FailedItems:  l.auction.FailedItems(),
		Captains:     l.auction.Captains(),
		Users:        maps.Clone(l.users),
		CountingDown: l.countingDown,
		Countdown:    l.remaining,
		LastResult:   l.lastResult,
	}
}
