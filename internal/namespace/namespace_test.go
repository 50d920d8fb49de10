package namespace

import (
	"sync"
	"testing"

	"github.com/pusherd/pusherd/internal/presence"
	"github.com/pusherd/pusherd/internal/socketid"
)

type fakeOutbox struct {
	mu   sync.Mutex
	recv [][]byte
}

func (f *fakeOutbox) Send(frame []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recv = append(f.recv, frame)
}

func (f *fakeOutbox) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.recv)
}

func TestSubscribeIdempotent(t *testing.T) {
	t.Parallel()
	n := New()
	id := socketid.ID(1)
	n.AddSocket(id, &fakeOutbox{})

	if joined := n.Subscribe("chat", id); !joined {
		t.Fatal("first Subscribe, want joined=true")
	}
	if joined := n.Subscribe("chat", id); joined {
		t.Fatal("second Subscribe, want joined=false (idempotent)")
	}
	if n.MemberCount("chat") != 1 {
		t.Fatalf("MemberCount = %d, want 1", n.MemberCount("chat"))
	}
}

func TestUnsubscribeRemovesEmptyChannel(t *testing.T) {
	t.Parallel()
	n := New()
	id := socketid.ID(1)
	n.AddSocket(id, &fakeOutbox{})
	n.Subscribe("chat", id)

	left, _, _ := n.Unsubscribe("chat", id)
	if !left {
		t.Fatal("Unsubscribe, want left=true")
	}
	names := n.ChannelNames()
	if len(names) != 0 {
		t.Fatalf("ChannelNames = %v, want empty after last member leaves", names)
	}
}

func TestChannelsForAndRemoveSocket(t *testing.T) {
	t.Parallel()
	n := New()
	id := socketid.ID(1)
	n.AddSocket(id, &fakeOutbox{})
	n.Subscribe("presence-lobby", id)
	n.SubscribePresence("presence-lobby", id, presence.Record{UserID: "alice"})
	n.Subscribe("public-y", id)

	chs := n.ChannelsFor(id)
	if len(chs) != 2 {
		t.Fatalf("ChannelsFor = %v, want 2 channels", chs)
	}

	for _, c := range chs {
		n.Unsubscribe(c, id)
	}
	n.RemoveSocket(id)

	if n.HasSocket(id) {
		t.Error("HasSocket true after RemoveSocket")
	}
	if n.MemberCount("presence-lobby") != 0 {
		t.Error("channel membership survived cleanup")
	}
	if snap := n.PresenceSnapshot("presence-lobby"); len(snap) != 0 {
		t.Errorf("presence roster survived cleanup: %v", snap)
	}
	if names := n.ChannelNames(); len(names) != 0 {
		t.Errorf("ChannelNames = %v, want empty (no empty-set entries left behind)", names)
	}
}

func TestUnsubscribeDropsPresenceRecord(t *testing.T) {
	t.Parallel()
	n := New()
	a, b := socketid.ID(1), socketid.ID(2)
	n.AddSocket(a, &fakeOutbox{})
	n.AddSocket(b, &fakeOutbox{})
	n.Subscribe("presence-lobby", a)
	n.Subscribe("presence-lobby", b)
	n.SubscribePresence("presence-lobby", a, presence.Record{UserID: "alice"})
	n.SubscribePresence("presence-lobby", b, presence.Record{UserID: "bob"})

	left, rec, hadPresence := n.Unsubscribe("presence-lobby", a)
	if !left {
		t.Fatal("Unsubscribe, want left=true")
	}
	if !hadPresence || rec.UserID != "alice" {
		t.Fatalf("Unsubscribe returned rec=%+v hadPresence=%v, want alice's record", rec, hadPresence)
	}

	snap := n.PresenceSnapshot("presence-lobby")
	if len(snap) != 1 {
		t.Fatalf("PresenceSnapshot has %d members, want 1", len(snap))
	}
	if _, ok := snap[a]; ok {
		t.Error("departed socket still present in presence roster")
	}
	if _, ok := snap[b]; !ok {
		t.Error("remaining socket missing from presence roster")
	}
}

func TestBroadcastExceptSender(t *testing.T) {
	t.Parallel()
	n := New()
	a, b := socketid.ID(1), socketid.ID(2)
	outA, outB := &fakeOutbox{}, &fakeOutbox{}
	n.AddSocket(a, outA)
	n.AddSocket(b, outB)
	n.Subscribe("chat", a)
	n.Subscribe("chat", b)

	n.Broadcast("chat", []byte("hello"), a)

	if outA.count() != 0 {
		t.Error("sender received its own broadcast")
	}
	if outB.count() != 1 {
		t.Errorf("other member count = %d, want 1", outB.count())
	}
}

func TestBroadcastConcurrentWithIntrospection(t *testing.T) {
	t.Parallel()
	n := New()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		id := socketid.ID(i + 1)
		n.AddSocket(id, &fakeOutbox{})
		n.Subscribe("chat", id)
	}

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			n.Broadcast("chat", []byte("x"), 0)
		}()
		go func() {
			defer wg.Done()
			_ = n.ChannelNames()
			_ = n.Members("chat")
		}()
	}
	wg.Wait()
}
