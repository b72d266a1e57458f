package lobby

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DoyleJ11/auction-backend/internal/countdown"
	"github.com/DoyleJ11/auction-backend/internal/engine"
	"github.com/DoyleJ11/auction-backend/internal/metrics"
	"github.com/DoyleJ11/auction-backend/internal/notify"
	"github.com/DoyleJ11/auction-backend/pkg/types"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"
)

func noShuffle(int, func(i, j int)) {}

type recordingSaver struct {
	mu    sync.Mutex
	snaps []engine.Snapshot
}

func (r *recordingSaver) Submit(s engine.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recordingSaver) last() (engine.Snapshot, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snaps) == 0 {
		return engine.Snapshot{}, 0
	}
	return r.snaps[len(r.snaps)-1], len(r.snaps)
}

type recordingPublisher struct {
	mu    sync.Mutex
	sales []notify.Sale
}

func (p *recordingPublisher) Publish(s notify.Sale) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sales = append(p.sales, s)
	return nil
}

func (p *recordingPublisher) Close() {}

type fixture struct {
	lobby   *Lobby
	clock   *clockwork.FakeClock
	saver   *recordingSaver
	pub     *recordingPublisher
	metrics *metrics.Metrics
}

// newFixture starts a lobby over an auction with teams A (100, captain
// capA) and B (50, captain capB) and the given items, prepared at index 0.
func newFixture(t *testing.T, items ...string) fixture {
	t.Helper()
	a := engine.New(engine.WithShuffler(noShuffle))
	setup := []engine.Command{
		{Type: engine.CmdAddTeam, TeamName: "A", Amount: 100},
		{Type: engine.CmdAddTeam, TeamName: "B", Amount: 50},
		{Type: engine.CmdAssignCaptain, Nickname: "capA", TeamName: "A"},
		{Type: engine.CmdAssignCaptain, Nickname: "capB", TeamName: "B"},
	}
	for _, it := range items {
		setup = append(setup, engine.Command{Type: engine.CmdAddItem, Nickname: it, MainPos: "mid"})
	}
	if len(items) > 0 {
		setup = append(setup, engine.Command{Type: engine.CmdShuffleAndPrepare})
	}
	for _, cmd := range setup {
		if _, err := a.Apply(cmd); err != nil {
			t.Fatalf("setup %s: %v", cmd.Type, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	f := fixture{
		clock:   clockwork.NewFakeClock(),
		saver:   &recordingSaver{},
		pub:     &recordingPublisher{},
		metrics: metrics.New(),
	}
	f.lobby = NewLobby(ctx, a,
		WithClock(f.clock),
		WithTick(time.Second),
		WithCountdown(3),
		WithSaver(f.saver),
		WithPublisher(f.pub),
		WithMetrics(f.metrics),
		WithLogger(zaptest.NewLogger(t)),
	)
	return f
}

// helper: receive one frame with a timeout so tests never hang
func recvFrame(t *testing.T, ch <-chan types.ServerMessage, within time.Duration) types.ServerMessage {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatalf("client outbox closed unexpectedly")
		}
		return msg
	case <-time.After(within):
		t.Fatalf("timed out waiting for frame")
		return types.ServerMessage{} // unreachable
	}
}

// recvKind skips frames until one of the given kind arrives.
func recvKind(t *testing.T, ch <-chan types.ServerMessage, kind string) types.ServerMessage {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				t.Fatalf("outbox closed while waiting for %s", kind)
			}
			if msg.Type == kind {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", kind)
		}
	}
}

func recvNoFrame(t *testing.T, ch <-chan types.ServerMessage, within time.Duration) {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			return
		}
		t.Fatalf("expected no frame within %v, but got: %+v", within, msg)
	case <-time.After(within):
		// good: no frame
	}
}

func drain(ch <-chan types.ServerMessage) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func (f fixture) view(t *testing.T) View {
	t.Helper()
	reply := make(chan View, 1)
	f.lobby.Inbox() <- GetState{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func (f fixture) join(t *testing.T, id, nickname string) chan types.ServerMessage {
	t.Helper()
	out := make(chan types.ServerMessage, 64)
	f.lobby.Inbox() <- Join{ClientID: id, Outbox: out}
	if nickname != "" {
		f.lobby.Inbox() <- SetNickname{ClientID: id, Nickname: nickname}
	}
	f.view(t) // barrier
	drain(out)
	return out
}

// step moves the fake clock one period once the countdown is parked.
func (f fixture) step(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := f.clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("countdown timer never armed: %v", err)
	}
	f.clock.Advance(time.Second)
}

func TestLobby_JoinReceivesFullSnapshot(t *testing.T) {
	f := newFixture(t, "faker")

	out := make(chan types.ServerMessage, 16)
	f.lobby.Inbox() <- Join{ClientID: "c1", Outbox: out}

	want := []string{
		types.KindUpdateBid,
		types.KindItemUpdate,
		types.KindTeamUpdate,
		types.KindCaptainMapUpdate,
		types.KindUserListUpdate,
	}
	for _, kind := range want {
		msg := recvFrame(t, out, 100*time.Millisecond)
		if msg.Type != kind {
			t.Fatalf("want %s, got %s", kind, msg.Type)
		}
	}
	recvNoFrame(t, out, 50*time.Millisecond)

	if v := f.view(t); v.NumClients != 1 {
		t.Fatalf("NumClients=%d, want 1", v.NumClients)
	}
}

func TestLobby_ValidationErrorIsPrivate(t *testing.T) {
	f := newFixture(t)
	admin := f.join(t, "admin", "")
	other := f.join(t, "other", "")

	f.lobby.Inbox() <- FromClient{ClientID: "admin", Cmd: engine.Command{Type: engine.CmdAddTeam, TeamName: "A", Amount: 10}}

	msg := recvFrame(t, admin, 200*time.Millisecond)
	if msg.Type != types.KindSystemMessage {
		t.Fatalf("want systemMessage, got %s", msg.Type)
	}
	if text := msg.Data.(types.SystemMessage).Text; text != `Team "A" already exists.` {
		t.Fatalf("unexpected text %q", text)
	}
	recvNoFrame(t, other, 50*time.Millisecond)
	if _, n := f.saver.last(); n != 0 {
		t.Fatalf("rejected command must not persist")
	}
}

func TestLobby_RejectedBidIsSilent(t *testing.T) {
	f := newFixture(t, "faker")
	c1 := f.join(t, "c1", "capA")
	c2 := f.join(t, "c2", "")

	// auction not started yet
	f.lobby.Inbox() <- FromClient{ClientID: "c1", Cmd: engine.Command{Type: engine.CmdPlaceBid, Amount: 10}}
	f.view(t)

	recvNoFrame(t, c1, 50*time.Millisecond)
	recvNoFrame(t, c2, 50*time.Millisecond)
	if got := testutil.ToFloat64(f.metrics.BidsRejected.WithLabelValues("not_started")); got != 1 {
		t.Fatalf("bids rejected=%v, want 1", got)
	}
}

func TestLobby_NicknameValidation(t *testing.T) {
	f := newFixture(t)
	c1 := f.join(t, "c1", "")

	cases := []struct {
		nickname string
		ok       bool
	}{
		{"", false},
		{"   ", false},
		{"elevenchars", false},
		{"열글자닉네임입니다다", true}, // ten runes, more than ten bytes
		{"capA", true},
	}
	for _, tc := range cases {
		f.lobby.Inbox() <- SetNickname{ClientID: "c1", Nickname: tc.nickname}
		msg := recvFrame(t, c1, 200*time.Millisecond)
		if tc.ok && msg.Type != types.KindUserListUpdate {
			t.Fatalf("%q: want userListUpdate, got %s", tc.nickname, msg.Type)
		}
		if !tc.ok && msg.Type != types.KindSystemMessage {
			t.Fatalf("%q: want systemMessage, got %s", tc.nickname, msg.Type)
		}
	}
	if got := f.view(t).Users["c1"]; got != "capA" {
		t.Fatalf("nickname=%q, want capA", got)
	}
}

func TestLobby_TimerExpiryResolvesItem(t *testing.T) {
	f := newFixture(t, "faker")
	bidder := f.join(t, "c1", "capA")
	watcher := f.join(t, "c2", "")

	f.lobby.Inbox() <- FromClient{ClientID: "c1", Cmd: engine.Command{Type: engine.CmdStartNext}}
	if v := recvKind(t, watcher, types.KindUpdateCountdown).Data.(types.CountdownUpdate).Value; v != 3 {
		t.Fatalf("first countdown value %d, want 3", v)
	}

	f.lobby.Inbox() <- FromClient{ClientID: "c1", Cmd: engine.Command{Type: engine.CmdPlaceBid, Amount: 60}}
	bid := recvKind(t, watcher, types.KindUpdateBid).Data.(types.BidUpdate)
	if bid.Amount != 60 || bid.BidderNickname != "capA" || !bid.IsStarted || bid.CurrentItem == nil {
		t.Fatalf("unexpected bid update %+v", bid)
	}
	// the bid restarts the countdown
	if v := recvKind(t, watcher, types.KindUpdateCountdown).Data.(types.CountdownUpdate).Value; v != 3 {
		t.Fatalf("countdown after bid %d, want 3", v)
	}

	for _, want := range []int{2, 1, 0} {
		f.step(t)
		got := recvKind(t, watcher, types.KindUpdateCountdown).Data.(types.CountdownUpdate).Value
		if got != want {
			t.Fatalf("countdown=%d, want %d", got, want)
		}
	}

	res := recvKind(t, watcher, types.KindAuctionResult).Data.(types.AuctionResult)
	if res.WinnerTeam != "A" || res.FinalBid != 60 || res.WinnerNickname != "capA" || res.ItemNickname != "faker" {
		t.Fatalf("unexpected result %+v", res)
	}
	recvKind(t, bidder, types.KindAuctionResult)

	v := f.view(t)
	if v.State.IsStarted || v.State.CurrentItemIndex != -1 || v.CountingDown {
		t.Fatalf("unexpected state after expiry %+v", v.State)
	}
	for _, tm := range v.Teams {
		if tm.Name == "A" && tm.Budget != 40 {
			t.Fatalf("team A budget=%d, want 40", tm.Budget)
		}
	}

	snap, _ := f.saver.last()
	if !snap.Items[0].IsAuctioned {
		t.Fatalf("persisted snapshot missing the sale")
	}
	if len(f.pub.sales) != 1 || !f.pub.sales[0].Sold {
		t.Fatalf("expected one published sale, got %+v", f.pub.sales)
	}
	if got := testutil.ToFloat64(f.metrics.ItemsResolved.WithLabelValues("sold")); got != 1 {
		t.Fatalf("items resolved=%v, want 1", got)
	}
}

func TestLobby_StaleTickIsDropped(t *testing.T) {
	f := newFixture(t, "faker")
	out := f.join(t, "c1", "")

	f.lobby.Inbox() <- TimerTick{Tick: countdown.Tick{Gen: 999, Remaining: 0, Expired: true}}
	f.view(t)

	recvNoFrame(t, out, 50*time.Millisecond)
	if v := f.view(t); v.State.CurrentItemIndex != 0 {
		t.Fatalf("stale expiry must not resolve anything")
	}
}

func TestLobby_LateJoinerConverges(t *testing.T) {
	f := newFixture(t, "faker", "keria")
	f.join(t, "c1", "capA")

	// sell the first item, then open the second
	f.lobby.Inbox() <- FromClient{ClientID: "c1", Cmd: engine.Command{Type: engine.CmdStartNext}}
	f.lobby.Inbox() <- FromClient{ClientID: "c1", Cmd: engine.Command{Type: engine.CmdPlaceBid, Amount: 30}}
	f.lobby.Inbox() <- FromClient{ClientID: "c1", Cmd: engine.Command{Type: engine.CmdEndAuction}}
	f.lobby.Inbox() <- FromClient{ClientID: "c1", Cmd: engine.Command{Type: engine.CmdStartNext}}
	f.view(t)

	late := make(chan types.ServerMessage, 16)
	f.lobby.Inbox() <- Join{ClientID: "late", Outbox: late}
	v := f.view(t)

	got := map[string]types.Payload{}
	for len(late) > 0 {
		msg := <-late
		got[msg.Type] = msg.Data
	}

	bid := got[types.KindUpdateBid].(types.BidUpdate)
	if bid.CurrentItem == nil || bid.CurrentItem.Nickname != "keria" || !bid.IsStarted {
		t.Fatalf("late joiner bid frame %+v", bid)
	}
	items := got[types.KindItemUpdate].(types.ItemUpdate).Items
	if len(items) != len(v.Items) || items[0] != v.Items[0] {
		t.Fatalf("late joiner items differ from lobby state")
	}
	if res, ok := got[types.KindAuctionResult].(types.AuctionResult); !ok || res.ItemNickname != "faker" {
		t.Fatalf("late joiner must see the last result, got %+v", got[types.KindAuctionResult])
	}
	if cd, ok := got[types.KindUpdateCountdown].(types.CountdownUpdate); !ok || cd.Value != v.Countdown {
		t.Fatalf("late joiner countdown %+v, lobby %d", got[types.KindUpdateCountdown], v.Countdown)
	}
}

func TestLobby_DropSlowClient(t *testing.T) {
	f := newFixture(t)

	clientOut := make(chan types.ServerMessage, 1)
	f.lobby.Inbox() <- Join{ClientID: "ch1", Outbox: clientOut}

	view := f.view(t)
	if view.NumClients != 0 {
		t.Fatalf("expected slow client to be dropped; NumClients=%d", view.NumClients)
	}
	if got := testutil.ToFloat64(f.metrics.ObserversDropped); got != 1 {
		t.Fatalf("observers dropped=%v, want 1", got)
	}
}

func TestLobby_HighBidderDisconnect(t *testing.T) {
	f := newFixture(t, "faker")
	f.join(t, "c1", "capA")
	watcher := f.join(t, "c2", "")

	f.lobby.Inbox() <- FromClient{ClientID: "c1", Cmd: engine.Command{Type: engine.CmdStartNext}}
	f.lobby.Inbox() <- FromClient{ClientID: "c1", Cmd: engine.Command{Type: engine.CmdPlaceBid, Amount: 20}}
	f.view(t)
	drain(watcher)

	f.lobby.Inbox() <- Leave{ClientID: "c1"}

	users := recvKind(t, watcher, types.KindUserListUpdate).Data.(types.UserListUpdate)
	if len(users.Users) != 0 {
		t.Fatalf("departed user still listed: %+v", users.Users)
	}
	bid := recvKind(t, watcher, types.KindUpdateBid).Data.(types.BidUpdate)
	if bid.Amount != 20 || bid.BidderNickname != engine.DisconnectedBidder {
		t.Fatalf("unexpected bid after disconnect %+v", bid)
	}
	if v := f.view(t); v.State.HighestBidderID != "" {
		t.Fatalf("bidder id must be cleared")
	}
}

func TestLobby_ForceAssignConfirmsToSender(t *testing.T) {
	f := newFixture(t, "faker")
	admin := f.join(t, "admin", "")
	watcher := f.join(t, "c2", "")

	f.lobby.Inbox() <- FromClient{ClientID: "admin", Cmd: engine.Command{Type: engine.CmdForceAssign, TeamName: "B"}}

	res := recvKind(t, watcher, types.KindAuctionResult).Data.(types.AuctionResult)
	if res.WinnerTeam != "B" || res.FinalBid != 0 || res.WinnerNickname != engine.ForcedAssignment {
		t.Fatalf("unexpected result %+v", res)
	}
	confirm := recvKind(t, admin, types.KindSystemMessage).Data.(types.SystemMessage)
	if confirm.Text != "faker was assigned to B at no cost." {
		t.Fatalf("unexpected confirmation %q", confirm.Text)
	}
	for len(watcher) > 0 {
		if msg := <-watcher; msg.Type == types.KindSystemMessage {
			t.Fatalf("confirmation leaked to another observer")
		}
	}
}

func TestLobby_ExecRepliesWithEvents(t *testing.T) {
	f := newFixture(t)
	out := f.join(t, "c1", "")

	reply := make(chan Result, 1)
	f.lobby.Inbox() <- Exec{Cmd: engine.Command{Type: engine.CmdAddItem, Nickname: "zeus", MainPos: "top"}, Reply: reply}
	res := <-reply
	if res.Err != nil {
		t.Fatalf("unexpected err %v", res.Err)
	}
	ev, ok := engine.FindEvent(res.Events, engine.EvtItemAdded)
	if !ok || ev.Item.Nickname != "zeus" || ev.Item.ID == "" {
		t.Fatalf("expected ItemAdded event, got %+v", res.Events)
	}
	if items := recvKind(t, out, types.KindItemUpdate).Data.(types.ItemUpdate).Items; len(items) != 1 {
		t.Fatalf("observers should see the new item")
	}
}

func TestLobby_ClearItemsStopsCountdown(t *testing.T) {
	f := newFixture(t, "faker")
	out := f.join(t, "c1", "capA")

	f.lobby.Inbox() <- FromClient{ClientID: "c1", Cmd: engine.Command{Type: engine.CmdStartNext}}
	recvKind(t, out, types.KindUpdateCountdown)

	reply := make(chan Result, 1)
	f.lobby.Inbox() <- Exec{Cmd: engine.Command{Type: engine.CmdClearItems}, Reply: reply}
	if res := <-reply; res.Err != nil {
		t.Fatalf("unexpected err %v", res.Err)
	}
	bid := recvKind(t, out, types.KindUpdateBid).Data.(types.BidUpdate)
	if bid.IsStarted || bid.CurrentItem != nil || bid.CurrentItemIndex != -1 {
		t.Fatalf("unexpected bid update after clear %+v", bid)
	}

	f.lobby.Inbox() <- FromClient{ClientID: "c1", Cmd: engine.Command{Type: engine.CmdPlaceBid, Amount: 60}}
	if v := f.view(t); v.CountingDown || v.State != engine.DefaultState() {
		t.Fatalf("auction still running after clear: %+v", v.State)
	}
	drain(out)

	f.clock.Advance(10 * time.Second)
	recvNoFrame(t, out, 50*time.Millisecond)
}

func TestLobby_ResetBroadcastsNotice(t *testing.T) {
	f := newFixture(t, "faker")
	out := f.join(t, "c1", "")

	f.lobby.Inbox() <- FromClient{ClientID: "c1", Cmd: engine.Command{Type: engine.CmdForceAssign, TeamName: "A"}}
	f.lobby.Inbox() <- FromClient{ClientID: "c1", Cmd: engine.Command{Type: engine.CmdReset}}

	for {
		msg := recvKind(t, out, types.KindSystemMessage)
		if msg.Data.(types.SystemMessage).Text == msgReset {
			break
		}
	}
	v := f.view(t)
	if v.LastResult != nil || v.State != engine.DefaultState() || v.Items[0].IsAuctioned {
		t.Fatalf("reset incomplete: %+v", v)
	}
}

func TestLobby_Shutdown_StopsTimer_NoFire(t *testing.T) {
	f := newFixture(t, "faker")
	out := f.join(t, "c1", "")

	f.lobby.Inbox() <- FromClient{ClientID: "c1", Cmd: engine.Command{Type: engine.CmdStartNext}}
	recvKind(t, out, types.KindUpdateCountdown)
	f.lobby.Inbox() <- Shutdown{}

	select {
	case <-f.lobby.Done():
	case <-time.After(time.Second):
		t.Fatalf("lobby did not stop")
	}
	f.clock.Advance(10 * time.Second)

	// Now assert no *new* frame shows up (or channel is closed)
	recvNoFrame(t, out, 100*time.Millisecond)
	if f.lobby.Send(RequestUserList{}) {
		t.Fatalf("Send must fail after shutdown")
	}
}
