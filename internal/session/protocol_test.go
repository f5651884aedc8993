package session

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestParseEvent(t *testing.T) {
	Convey("ParseEvent", t, func() {
		Convey("Should parse HELLO with heartbeat interval", func() {
			ev, err := ParseEvent([]byte(`{"type":"HELLO","data":{"heartbeat_interval":30000}}`))
			So(err, ShouldBeNil)
			hello, ok := ev.(HelloEvent)
			So(ok, ShouldBeTrue)
			So(hello.HeartbeatInterval, ShouldEqual, 30000)
		})

		Convey("Should tolerate HELLO without data", func() {
			ev, err := ParseEvent([]byte(`{"type":"HELLO"}`))
			So(err, ShouldBeNil)
			So(ev, ShouldHaveSameTypeAs, HelloEvent{})
		})

		Convey("Should parse STATE_UPDATE keeping sections raw", func() {
			ev, err := ParseEvent([]byte(`{"type":"STATE_UPDATE","data":{"current":{"title":"a"},"queue":[]}}`))
			So(err, ShouldBeNil)
			st, ok := ev.(StateUpdateEvent)
			So(ok, ShouldBeTrue)
			So(string(st.Current), ShouldEqual, `{"title":"a"}`)
			So(string(st.Queue), ShouldEqual, `[]`)
			So(st.Controls, ShouldBeNil)
		})

		Convey("Should distinguish explicit null from absent", func() {
			ev, err := ParseEvent([]byte(`{"type":"STATE_UPDATE","data":{"current":null}}`))
			So(err, ShouldBeNil)
			st := ev.(StateUpdateEvent)
			So(string(st.Current), ShouldEqual, "null")
			So(st.Queue, ShouldBeNil)
		})

		Convey("Should parse ERROR", func() {
			ev, err := ParseEvent([]byte(`{"type":"ERROR","data":{"message":"no player"}}`))
			So(err, ShouldBeNil)
			So(ev.(ErrorEvent).Message, ShouldEqual, "no player")
		})

		Convey("Should reject unknown types", func() {
			_, err := ParseEvent([]byte(`{"type":"NOPE","data":{}}`))
			So(err, ShouldNotBeNil)
		})

		Convey("Should reject malformed frames", func() {
			_, err := ParseEvent([]byte(`{"type":`))
			So(err, ShouldNotBeNil)
		})

		Convey("Should reject malformed payloads", func() {
			_, err := ParseEvent([]byte(`{"type":"HELLO","data":[1,2]}`))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestValidRepeatMode(t *testing.T) {
	Convey("ValidRepeatMode", t, func() {
		So(ValidRepeatMode(RepeatOff), ShouldBeTrue)
		So(ValidRepeatMode(RepeatTrack), ShouldBeTrue)
		So(ValidRepeatMode(RepeatQueue), ShouldBeTrue)
		So(ValidRepeatMode(RepeatMode("forever")), ShouldBeFalse)
	})
}
