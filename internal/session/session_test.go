package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	. "github.com/smartystreets/goconvey/convey"
)

// echoStateServer upgrades every request, replies to the client HELLO with a
// handshake, then pushes the configured frames.
func echoStateServer(dials *int32, frames ...Envelope) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if dials != nil {
			atomic.AddInt32(dials, 1)
		}
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		var env Envelope
		if err := ws.ReadJSON(&env); err != nil {
			return
		}
		_ = ws.WriteJSON(Envelope{Type: "HELLO", Data: []byte(`{"heartbeat_interval":30000}`)})
		for _, f := range frames {
			_ = ws.WriteJSON(f)
		}
		for {
			if err := ws.ReadJSON(&env); err != nil {
				return
			}
		}
	}))
}

func fastSessionOptions(guildID, socketURL string) Options {
	return Options{
		GuildID:      guildID,
		SocketURL:    socketURL,
		MaxRetries:   2,
		BackoffBase:  10 * time.Millisecond,
		DialTimeout:  2 * time.Second,
		TickInterval: 50 * time.Millisecond,
		Log:          zerolog.Nop(),
	}
}

func TestSessionURL(t *testing.T) {
	Convey("sessionURL", t, func() {
		Convey("Should append the guild id and escape the auth token", func() {
			So(sessionURL("wss://host/ws/music", "123", "a b"),
				ShouldEqual, "wss://host/ws/music/123?auth=a+b")
		})
		Convey("Should tolerate a trailing slash", func() {
			So(sessionURL("wss://host/ws/music/", "123", ""),
				ShouldEqual, "wss://host/ws/music/123")
		})
	})
}

func TestSessionLifecycle(t *testing.T) {
	Convey("Session lifecycle", t, func() {
		srv := echoStateServer(nil, Envelope{
			Type: "STATE_UPDATE",
			Data: []byte(`{"current":{"title":"Song","artist":"Band","duration":180000,"position":0,"is_playing":true},"controls":{"volume":70}}`),
		})
		defer srv.Close()

		sess := New(fastSessionOptions("g1", wsURL(srv)))
		sess.Start()
		defer sess.Stop()

		Convey("Should expose connectivity and merged state", func() {
			So(eventually(sess.IsConnected), ShouldBeTrue)
			So(sess.ConnectionError(), ShouldBeEmpty)

			So(eventually(func() bool {
				st := sess.State()
				return st.Current != nil && st.Current.Title == "Song"
			}), ShouldBeTrue)
			So(sess.State().Controls.Volume, ShouldEqual, 70)
			So(sess.GuildID(), ShouldEqual, "g1")
		})

		Convey("Should advance position locally between updates", func() {
			So(eventually(func() bool {
				st := sess.State()
				return st.Current != nil && st.Controls.IsPlaying
			}), ShouldBeTrue)

			So(eventually(func() bool {
				return sess.State().Current.PositionMs > 0
			}), ShouldBeTrue)
		})

		Convey("Should go quiet after Stop", func() {
			So(eventually(sess.IsConnected), ShouldBeTrue)
			sess.Stop()
			So(eventually(func() bool { return !sess.IsConnected() }), ShouldBeTrue)
			So(sess.Play(), ShouldBeFalse)
		})
	})
}

func TestSessionEnrichmentSurface(t *testing.T) {
	Convey("Session lazy enrichment", t, func() {
		Convey("Should refuse lookups with no current track", func() {
			sess := New(fastSessionOptions("g1", "ws://127.0.0.1:1"))

			_, err := sess.Lyrics(context.Background())
			So(err, ShouldEqual, ErrNoTrack)
			_, err = sess.ArtistInfo(context.Background())
			So(err, ShouldEqual, ErrNoTrack)
		})

		Convey("Should return nothing when no enricher is wired", func() {
			srv := echoStateServer(nil, Envelope{
				Type: "STATE_UPDATE",
				Data: []byte(`{"current":{"title":"Song","artist":"Band"}}`),
			})
			defer srv.Close()

			sess := New(fastSessionOptions("g1", wsURL(srv)))
			sess.Start()
			defer sess.Stop()

			So(eventually(func() bool { return sess.State().Current != nil }), ShouldBeTrue)

			res, err := sess.Lyrics(context.Background())
			So(err, ShouldBeNil)
			So(res, ShouldBeNil)
		})
	})
}

func TestManager(t *testing.T) {
	Convey("Manager", t, func() {
		var dials int32
		srv := echoStateServer(&dials)
		defer srv.Close()

		m := NewManager(func(id string) *Session {
			return New(fastSessionOptions(id, wsURL(srv)))
		}, zerolog.Nop())
		defer m.CloseAll()

		Convey("Should keep one session per guild", func() {
			s1 := m.Open("g1")
			So(eventually(s1.IsConnected), ShouldBeTrue)

			got, ok := m.Get("g1")
			So(ok, ShouldBeTrue)
			So(got, ShouldEqual, s1)

			_, ok = m.Get("g2")
			So(ok, ShouldBeFalse)
		})

		Convey("Should tear down the old session when reopening a guild", func() {
			s1 := m.Open("g1")
			So(eventually(s1.IsConnected), ShouldBeTrue)

			s2 := m.Open("g1")
			So(s2, ShouldNotEqual, s1)
			So(eventually(func() bool { return !s1.IsConnected() }), ShouldBeTrue)
			So(eventually(s2.IsConnected), ShouldBeTrue)
			So(atomic.LoadInt32(&dials), ShouldEqual, 2)
		})

		Convey("Should stop sessions on Close and CloseAll", func() {
			s1 := m.Open("g1")
			So(eventually(s1.IsConnected), ShouldBeTrue)

			m.Close("g1")
			So(eventually(func() bool { return !s1.IsConnected() }), ShouldBeTrue)
			_, ok := m.Get("g1")
			So(ok, ShouldBeFalse)
		})
	})
}

// Confirms that clean shutdown from our side never turns into a reconnect
// storm against the service.
func TestSessionStopIdempotent(t *testing.T) {
	Convey("Session Stop", t, func() {
		var dials int32
		srv := echoStateServer(&dials)
		defer srv.Close()

		sess := New(fastSessionOptions("g1", wsURL(srv)))
		sess.Start()
		So(eventually(sess.IsConnected), ShouldBeTrue)

		Convey("Should be safe to call repeatedly", func() {
			sess.Stop()
			sess.Stop()
			time.Sleep(100 * time.Millisecond)
			So(atomic.LoadInt32(&dials), ShouldEqual, 1)
			So(sess.IsConnected(), ShouldBeFalse)
		})
	})
}
