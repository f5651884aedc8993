package enrich

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestCleanQuery(t *testing.T) {
	Convey("CleanQuery", t, func() {
		Convey("Should strip bracketed and qualifier noise", func() {
			title, artist := CleanQuery("Song [Remastered 2011] (Official Video)", "Band")
			So(title, ShouldEqual, "Song")
			So(artist, ShouldEqual, "Band")
		})

		Convey("Should strip feat credits", func() {
			title, _ := CleanQuery("Song (feat. Someone)", "Band")
			So(title, ShouldEqual, "Song")

			title, _ = CleanQuery("Song (ft. Someone)", "Band")
			So(title, ShouldEqual, "Song")
		})

		Convey("Should strip soundtrack qualifiers", func() {
			title, _ := CleanQuery(`Song (from "Some Movie")`, "Band")
			So(title, ShouldEqual, "Song")
		})

		Convey("Should split an embedded artist prefix", func() {
			title, artist := CleanQuery("Real Artist - Real Title", "uploader-channel")
			So(title, ShouldEqual, "Real Title")
			So(artist, ShouldEqual, "Real Artist")
		})

		Convey("Should keep the reported artist when the split side is empty", func() {
			title, artist := CleanQuery("Dangling - ", "Band")
			So(title, ShouldEqual, "Dangling -")
			So(artist, ShouldEqual, "Band")
		})

		Convey("Should leave clean input alone", func() {
			title, artist := CleanQuery("Song", "Band")
			So(title, ShouldEqual, "Song")
			So(artist, ShouldEqual, "Band")
		})
	})
}

func TestCacheKey(t *testing.T) {
	Convey("CacheKey", t, func() {
		Convey("Should fold case and noise onto one key", func() {
			So(CacheKey("Song (Official Video)", "BAND"), ShouldEqual, "song::band")
			So(CacheKey("song", "band"), ShouldEqual, "song::band")
		})

		Convey("Should keep different tracks apart", func() {
			So(CacheKey("Song A", "Band"), ShouldNotEqual, CacheKey("Song B", "Band"))
			So(CacheKey("Song", "Band A"), ShouldNotEqual, CacheKey("Song", "Band B"))
		})
	})
}
