package redisledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/coachmatch/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func unreachableClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestLedgerOptions(t *testing.T) {
	convey.Convey("Given a ledger built with options", t, func() {
		l := New(unreachableClient(), WithTTL(time.Minute), WithPrefix("test:"))
		defer func() { _ = l.Close() }()

		convey.Convey("Then they should be applied", func() {
			convey.So(l.ttl, convey.ShouldEqual, time.Minute)
			convey.So(l.prefix, convey.ShouldEqual, "test:")
		})
	})

	convey.Convey("Given zero-value options", t, func() {
		l := New(unreachableClient(), WithTTL(0), WithPrefix(""))
		defer func() { _ = l.Close() }()

		convey.Convey("Then the defaults should be kept", func() {
			convey.So(l.ttl, convey.ShouldEqual, defaultTTL)
			convey.So(l.prefix, convey.ShouldEqual, defaultPrefix)
		})
	})
}

func TestLedgerAgainstRedis(t *testing.T) {
	convey.Convey("Given a ledger over a live Redis", t, func() {
		mr := miniredis.RunT(t)
		l := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), WithTTL(time.Hour), WithPrefix("test:"))
		defer func() { _ = l.Close() }()
		ctx := context.Background()
		const key = "discovery_call:call-1:completed"

		convey.Convey("When the same key is offered twice", func() {
			first := l.SeenAndRecord(ctx, key)
			second := l.SeenAndRecord(ctx, key)

			convey.Convey("Then only the second is a duplicate", func() {
				convey.So(first, convey.ShouldBeFalse)
				convey.So(second, convey.ShouldBeTrue)
				convey.So(l.Size(), convey.ShouldEqual, int64(1))
			})

			convey.Convey("Then the key is stored under the prefix with the TTL", func() {
				convey.So(mr.Exists("test:"+key), convey.ShouldBeTrue)
				convey.So(mr.Exists(key), convey.ShouldBeFalse)
				convey.So(mr.TTL("test:"+key), convey.ShouldEqual, time.Hour)
			})
		})

		convey.Convey("When a recorded key is unrecorded", func() {
			l.SeenAndRecord(ctx, key)
			l.Unrecord(ctx, key)

			convey.Convey("Then a retry is accepted again", func() {
				convey.So(mr.Exists("test:"+key), convey.ShouldBeFalse)
				convey.So(l.Size(), convey.ShouldEqual, int64(0))
				convey.So(l.SeenAndRecord(ctx, key), convey.ShouldBeFalse)
				convey.So(l.Size(), convey.ShouldEqual, int64(1))
			})
		})

		convey.Convey("When an unknown key is unrecorded", func() {
			l.Unrecord(ctx, "never-seen")

			convey.Convey("Then the count does not drop", func() {
				convey.So(l.Size(), convey.ShouldEqual, int64(0))
			})
		})

		convey.Convey("When the TTL passes", func() {
			l.SeenAndRecord(ctx, key)
			mr.FastForward(time.Hour + time.Second)

			convey.Convey("Then the key is forgotten", func() {
				convey.So(l.SeenAndRecord(ctx, key), convey.ShouldBeFalse)
			})
		})

		convey.Convey("When two ledgers share the server", func() {
			other := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), WithPrefix("test:"))
			defer func() { _ = other.Close() }()
			l.SeenAndRecord(ctx, key)

			convey.Convey("Then the second replica sees the first one's key", func() {
				convey.So(other.SeenAndRecord(ctx, key), convey.ShouldBeTrue)
				convey.So(other.Size(), convey.ShouldEqual, int64(0))
			})
		})
	})

	convey.Convey("Given Dial against a live Redis", t, func() {
		mr := miniredis.RunT(t)
		l, err := Dial(context.Background(), "redis://"+mr.Addr()+"/0", WithTTL(time.Minute))

		convey.Convey("Then it connects and records keys", func() {
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = l.Close() }()
			convey.So(l.SeenAndRecord(context.Background(), "k"), convey.ShouldBeFalse)
			convey.So(mr.TTL(defaultPrefix+"k"), convey.ShouldEqual, time.Minute)
		})
	})
}

func TestLedgerFailsOpen(t *testing.T) {
	convey.Convey("Given a ledger whose Redis is down", t, func() {
		l := New(unreachableClient())
		defer func() { _ = l.Close() }()
		ctx := context.Background()

		convey.Convey("When the same key is offered twice", func() {
			first := l.SeenAndRecord(ctx, "discovery_call:call-1:completed")
			second := l.SeenAndRecord(ctx, "discovery_call:call-1:completed")

			convey.Convey("Then both should be treated as new", func() {
				convey.So(first, convey.ShouldBeFalse)
				convey.So(second, convey.ShouldBeFalse)
				convey.So(l.Size(), convey.ShouldEqual, int64(0))
			})
		})

		convey.Convey("When a key is unrecorded", func() {
			convey.Convey("Then it should not panic", func() {
				convey.So(func() { l.Unrecord(ctx, "missing") }, convey.ShouldNotPanic)
			})
		})
	})
}

func TestDial(t *testing.T) {
	convey.Convey("Given a malformed url", t, func() {
		_, err := Dial(context.Background(), "not-a-url")

		convey.Convey("Then Dial should fail to parse it", func() {
			convey.So(err, convey.ShouldNotBeNil)
		})
	})

	convey.Convey("Given an unreachable server", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_, err := Dial(ctx, "redis://127.0.0.1:1/0")

		convey.Convey("Then Dial should report it", func() {
			convey.So(errors.Is(err, ErrConnect), convey.ShouldBeTrue)
		})
	})
}
