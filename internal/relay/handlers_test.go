package relay

import (
	"fmt"
	"testing"
	"time"

	"github.com/coderoom/coderoom/internal/config"
	"github.com/coderoom/coderoom/internal/domain"
	"github.com/coderoom/coderoom/internal/protocol"
)

func newTestController() *Controller {
	return NewController(config.ServerConfig{ReadLimit: 65536, PingPeriod: 54 * time.Second})
}

func connect(ctl *Controller, sid domain.SocketID) *fakeConn {
	conn := &fakeConn{}
	ctl.Registry.Bind(NewClient(sid, conn))
	return conn
}

func join(ctl *Controller, sid domain.SocketID, room, name string) {
	ctl.handleSignal(sid, []byte(fmt.Sprintf(`{"type":"join","room":%q,"username":%q}`, room, name)))
}

func frameTypes(t *testing.T, conn *fakeConn) []protocol.EventType {
	t.Helper()
	var out []protocol.EventType
	for _, f := range conn.frames() {
		env, err := protocol.Decode(f)
		if err != nil {
			t.Fatalf("decode sent frame: %v", err)
		}
		out = append(out, env.Type)
	}
	return out
}

func lastFrame(t *testing.T, conn *fakeConn, want protocol.EventType) *protocol.Envelope {
	t.Helper()
	frames := conn.frames()
	if len(frames) == 0 {
		t.Fatal("no frames sent")
	}
	env, err := protocol.Decode(frames[len(frames)-1])
	if err != nil {
		t.Fatalf("decode sent frame: %v", err)
	}
	if env.Type != want {
		t.Fatalf("last frame type = %s, want %s", env.Type, want)
	}
	return env
}

func TestJoinFansOutRosterAndNewPeer(t *testing.T) {
	ctl := newTestController()
	connA := connect(ctl, "s1")
	connB := connect(ctl, "s2")

	join(ctl, "s1", "r1", "alice")
	join(ctl, "s2", "r1", "bob")

	// alice sees her own joined, bob's joined, and the new_peer nudge.
	wantA := []protocol.EventType{protocol.EventJoined, protocol.EventJoined, protocol.EventNewPeer}
	gotA := frameTypes(t, connA)
	if len(gotA) != len(wantA) {
		t.Fatalf("alice frames = %v, want %v", gotA, wantA)
	}
	for i := range wantA {
		if gotA[i] != wantA[i] {
			t.Fatalf("alice frames = %v, want %v", gotA, wantA)
		}
	}

	// bob only sees the joined snapshot; new_peer excludes the joiner.
	gotB := frameTypes(t, connB)
	if len(gotB) != 1 || gotB[0] != protocol.EventJoined {
		t.Fatalf("bob frames = %v", gotB)
	}

	var joined protocol.Joined
	if err := lastFrame(t, connB, protocol.EventJoined).Bind(&joined); err != nil {
		t.Fatalf("bind joined: %v", err)
	}
	if joined.SocketID != "s2" || joined.Username != "bob" {
		t.Errorf("joined identifies %s/%s", joined.SocketID, joined.Username)
	}
	if len(joined.Clients) != 2 || joined.Clients[0].SocketID != "s1" || joined.Clients[1].SocketID != "s2" {
		t.Errorf("roster = %v", joined.Clients)
	}

	var newPeer protocol.NewPeer
	if err := lastFrame(t, connA, protocol.EventNewPeer).Bind(&newPeer); err != nil {
		t.Fatalf("bind new_peer: %v", err)
	}
	if newPeer.SocketID != "s2" {
		t.Errorf("new_peer targets %s", newPeer.SocketID)
	}
}

func TestJoinRejectsBadRequests(t *testing.T) {
	ctl := newTestController()
	conn := connect(ctl, "s1")

	join(ctl, "s1", "", "alice")
	lastFrame(t, conn, protocol.EventError)

	join(ctl, "s1", "r1", "")
	if got := frameTypes(t, conn); got[len(got)-1] != protocol.EventError {
		t.Fatal("expected error event for empty username")
	}

	join(ctl, "s1", "r1", "alice")
	join(ctl, "s1", "r2", "alice")
	var errEvent protocol.ErrorEvent
	if err := lastFrame(t, conn, protocol.EventError).Bind(&errEvent); err != nil {
		t.Fatalf("bind error: %v", err)
	}
	if errEvent.Error != "already in a room" {
		t.Errorf("second join error = %q", errEvent.Error)
	}
}

func TestRelayConsumesToAndStampsFrom(t *testing.T) {
	ctl := newTestController()
	connect(ctl, "s1")
	connB := connect(ctl, "s2")
	join(ctl, "s1", "r1", "alice")
	join(ctl, "s2", "r1", "bob")

	ctl.handleSignal("s1", []byte(`{"type":"offer","sdp":"v=0","to":"s2"}`))

	var offer protocol.Offer
	if err := lastFrame(t, connB, protocol.EventOffer).Bind(&offer); err != nil {
		t.Fatalf("bind offer: %v", err)
	}
	if offer.From != "s1" {
		t.Errorf("from = %s, want s1", offer.From)
	}
	if offer.To != "" {
		t.Errorf("to survived relay: %s", offer.To)
	}
	if offer.SDP != "v=0" {
		t.Errorf("sdp = %q", offer.SDP)
	}
}

func TestRelayDropsMissingTarget(t *testing.T) {
	ctl := newTestController()
	conn := connect(ctl, "s1")
	join(ctl, "s1", "r1", "alice")
	before := len(conn.frames())

	ctl.handleSignal("s1", []byte(`{"type":"candidate","candidate":{"candidate":"c"},"to":"gone"}`))
	ctl.handleSignal("s1", []byte(`{"type":"answer","sdp":"v=0"}`))

	if got := len(conn.frames()); got != before {
		t.Errorf("expected no feedback frames, got %d extra", got-before)
	}
}

func TestSyncDocRelaysToTargetOnly(t *testing.T) {
	ctl := newTestController()
	connA := connect(ctl, "s1")
	connB := connect(ctl, "s2")
	connC := connect(ctl, "s3")
	join(ctl, "s1", "r1", "alice")
	join(ctl, "s2", "r1", "bob")
	join(ctl, "s3", "r1", "carol")
	beforeA, beforeC := len(connA.frames()), len(connC.frames())

	ctl.handleSignal("s1", []byte(`{"type":"sync_doc","code":"package main","to":"s2"}`))

	var doc protocol.SyncDoc
	if err := lastFrame(t, connB, protocol.EventSyncDoc).Bind(&doc); err != nil {
		t.Fatalf("bind sync_doc: %v", err)
	}
	if doc.Code != "package main" || doc.From != "s1" {
		t.Errorf("sync_doc = %+v", doc)
	}
	if len(connA.frames()) != beforeA || len(connC.frames()) != beforeC {
		t.Error("sync_doc leaked beyond its target")
	}
}

func TestMicToggleAckExcludesSender(t *testing.T) {
	ctl := newTestController()
	connA := connect(ctl, "s1")
	connB := connect(ctl, "s2")
	join(ctl, "s1", "r1", "alice")
	join(ctl, "s2", "r1", "bob")
	beforeA := len(connA.frames())

	ctl.handleSignal("s1", []byte(`{"type":"mic_toggle","room":"r1","username":"alice","micOn":true}`))

	var ack protocol.MicToggleAck
	if err := lastFrame(t, connB, protocol.EventMicToggleAck).Bind(&ack); err != nil {
		t.Fatalf("bind ack: %v", err)
	}
	if ack.Username != "alice" || !ack.MicOn {
		t.Errorf("ack = %+v", ack)
	}
	if len(connA.frames()) != beforeA {
		t.Error("sender received its own ack")
	}

	cl, _ := ctl.Registry.Get("s1")
	if !cl.MicOn() {
		t.Error("server-side mic state not updated")
	}
}

func TestViewToggleAckExcludesSender(t *testing.T) {
	ctl := newTestController()
	connA := connect(ctl, "s1")
	connB := connect(ctl, "s2")
	join(ctl, "s1", "r1", "alice")
	join(ctl, "s2", "r1", "bob")

	ctl.handleSignal("s2", []byte(`{"type":"view_toggle","room":"r1","username":"bob","state":true}`))

	var ack protocol.ViewToggleAck
	if err := lastFrame(t, connA, protocol.EventViewToggleAck).Bind(&ack); err != nil {
		t.Fatalf("bind ack: %v", err)
	}
	if ack.Username != "bob" || !ack.State {
		t.Errorf("ack = %+v", ack)
	}
	if got := frameTypes(t, connB); len(got) > 0 && got[len(got)-1] == protocol.EventViewToggleAck {
		t.Error("sender received its own ack")
	}
}

func TestDisconnectAnnouncesAndCleansUp(t *testing.T) {
	ctl := newTestController()
	connA := connect(ctl, "s1")
	connect(ctl, "s2")
	join(ctl, "s1", "r1", "alice")
	join(ctl, "s2", "r1", "bob")

	ctl.disconnect("s2")

	var gone protocol.Disconnected
	if err := lastFrame(t, connA, protocol.EventDisconnected).Bind(&gone); err != nil {
		t.Fatalf("bind disconnected: %v", err)
	}
	if gone.SocketID != "s2" || gone.Username != "bob" {
		t.Errorf("disconnected = %+v", gone)
	}
	room, ok := ctl.Rooms.Get("r1")
	if !ok || room.Count() != 1 {
		t.Fatal("room should survive with one member")
	}

	ctl.disconnect("s1")
	if _, ok := ctl.Rooms.Get("r1"); ok {
		t.Error("empty room not removed")
	}
	if ctl.Registry.Len() != 0 {
		t.Errorf("registry still holds %d clients", ctl.Registry.Len())
	}

	// Repeat disconnects are no-ops.
	ctl.disconnect("s1")
}

func TestSlowClientIsDropped(t *testing.T) {
	ctl := newTestController()
	connect(ctl, "s1")
	connB := connect(ctl, "s2")
	join(ctl, "s1", "r1", "alice")
	join(ctl, "s2", "r1", "bob")
	connB.full = true

	ctl.handleSignal("s1", []byte(`{"type":"mic_toggle","room":"r1","username":"alice","micOn":true}`))

	if !connB.isClosed() {
		t.Error("slow client connection not closed")
	}
}

func TestUnknownSignalIsIgnored(t *testing.T) {
	ctl := newTestController()
	conn := connect(ctl, "s1")

	ctl.handleSignal("s1", []byte(`{"type":"bogus"}`))
	ctl.handleSignal("s1", []byte(`garbage`))

	if got := len(conn.frames()); got != 0 {
		t.Errorf("expected silence, got %d frames", got)
	}
}
