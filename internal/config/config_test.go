package config

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoad(t *testing.T) {
	Convey("Load", t, func() {
		Convey("Should fall back to defaults", func() {
			cfg, err := Load()
			So(err, ShouldBeNil)
			So(cfg.SocketURL, ShouldEqual, "wss://api.evict.bot/ws/music")
			So(cfg.MaxRetries, ShouldEqual, 3)
			So(cfg.BackoffBase, ShouldEqual, time.Second)
			So(cfg.TickInterval, ShouldEqual, time.Second)
			So(cfg.EnrichTimeout, ShouldEqual, 10*time.Second)
		})

		Convey("Should read overrides from the environment", func() {
			t.Setenv("PLAYER_SOCKET_URL", "ws://localhost:9000/ws/music")
			t.Setenv("SOCKET_MAX_RETRIES", "5")
			t.Setenv("SOCKET_BACKOFF_BASE", "250ms")

			cfg, err := Load()
			So(err, ShouldBeNil)
			So(cfg.SocketURL, ShouldEqual, "ws://localhost:9000/ws/music")
			So(cfg.MaxRetries, ShouldEqual, 5)
			So(cfg.BackoffBase, ShouldEqual, 250*time.Millisecond)
		})

		Convey("Should reject a negative retry budget", func() {
			t.Setenv("SOCKET_MAX_RETRIES", "-1")
			_, err := Load()
			So(err, ShouldNotBeNil)
		})

		Convey("Should reject a non-positive backoff base", func() {
			t.Setenv("SOCKET_BACKOFF_BASE", "0s")
			_, err := Load()
			So(err, ShouldNotBeNil)
		})
	})
}
