package cache_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperloop/hyperloop-go/src/hyperloop/cache"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

type callerFunc func(ctx context.Context, fn string, args interface{}) (json.RawMessage, error)

func (f callerFunc) Call(ctx context.Context, fn string, args interface{}) (json.RawMessage, error) {
	return f(ctx, fn, args)
}

var _ = Describe("Cache", func() {
	var (
		dir    string
		store  *cache.BoltStore
		calls  int
		caller cache.Caller
		subj   *cache.Cache
	)

	rules := cache.RuleSet{
		"geo.lookup": {
			cache.NewRule(`nocache`, cache.NoStore),
			cache.NewRule(`.`, time.Minute),
		},
	}

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "hyperloop-cache")
		Expect(err).ShouldNot(HaveOccurred())

		store, err = cache.OpenBolt(filepath.Join(dir, "cache.db"))
		Expect(err).ShouldNot(HaveOccurred())

		calls = 0
		caller = callerFunc(func(ctx context.Context, fn string, args interface{}) (json.RawMessage, error) {
			calls++
			return json.RawMessage(`{"country":"AU"}`), nil
		})

		subj = cache.New(
			caller,
			store,
			rules,
			cache.SweepInterval(time.Hour),
		)
	})

	AfterEach(func() {
		subj.Stop()
		<-subj.Done()

		store.Close()
		os.RemoveAll(dir)
	})

	Describe("Call", func() {
		It("calls through on the first request", func() {
			res, err := subj.Call(context.Background(), "geo.lookup", map[string]interface{}{"url": "https://example.org"})

			Expect(err).ShouldNot(HaveOccurred())
			Expect(res.Hit).To(BeFalse())
			Expect([]byte(res.Value)).To(MatchJSON(`{"country":"AU"}`))
			Expect(calls).To(Equal(1))
		})

		It("serves a repeated request from the cache", func() {
			args := map[string]interface{}{"url": "https://example.org"}

			_, err := subj.Call(context.Background(), "geo.lookup", args)
			Expect(err).ShouldNot(HaveOccurred())

			res, err := subj.Call(context.Background(), "geo.lookup", args)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(res.Hit).To(BeTrue())
			Expect([]byte(res.Value)).To(MatchJSON(`{"country":"AU"}`))
			Expect(calls).To(Equal(1))
		})

		It("treats canonically equal arguments as the same call", func() {
			_, err := subj.Call(context.Background(), "geo.lookup", map[string]interface{}{
				"url":  "https://example.org",
				"lang": "en",
			})
			Expect(err).ShouldNot(HaveOccurred())

			res, err := subj.Call(context.Background(), "geo.lookup", map[string]interface{}{
				"lang": "en",
				"url":  "https://example.org",
			})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(res.Hit).To(BeTrue())
			Expect(calls).To(Equal(1))
		})

		It("does not share entries between functions", func() {
			args := map[string]interface{}{"url": "https://example.org"}

			_, err := subj.Call(context.Background(), "geo.lookup", args)
			Expect(err).ShouldNot(HaveOccurred())

			res, err := subj.Call(context.Background(), "geo.reverse", args)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(res.Hit).To(BeFalse())
			Expect(calls).To(Equal(2))
		})

		It("does not store results excluded by a rule", func() {
			args := map[string]interface{}{"url": "https://nocache.example.org"}

			_, err := subj.Call(context.Background(), "geo.lookup", args)
			Expect(err).ShouldNot(HaveOccurred())

			res, err := subj.Call(context.Background(), "geo.lookup", args)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(res.Hit).To(BeFalse())
			Expect(calls).To(Equal(2))
		})

		It("does not store results for functions without rules", func() {
			args := map[string]interface{}{"url": "https://example.org"}

			_, err := subj.Call(context.Background(), "geo.reverse", args)
			Expect(err).ShouldNot(HaveOccurred())

			res, err := subj.Call(context.Background(), "geo.reverse", args)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(res.Hit).To(BeFalse())
			Expect(calls).To(Equal(2))
		})

		It("calls through again once a stored entry expires", func() {
			short := cache.RuleSet{
				"geo.lookup": {
					cache.NewRule(`.`, 50*time.Millisecond),
				},
			}

			expiring := cache.New(
				caller,
				store,
				short,
				cache.SweepInterval(time.Hour),
			)
			defer expiring.Stop()

			args := map[string]interface{}{"url": "https://example.org"}

			res, err := expiring.Call(context.Background(), "geo.lookup", args)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(res.Hit).To(BeFalse())

			res, err = expiring.Call(context.Background(), "geo.lookup", args)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(res.Hit).To(BeTrue())
			Expect(calls).To(Equal(1))

			time.Sleep(80 * time.Millisecond)

			res, err = expiring.Call(context.Background(), "geo.lookup", args)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(res.Hit).To(BeFalse())
			Expect(calls).To(Equal(2))
		})

		It("propagates call errors without storing anything", func() {
			expected := errors.New("<error>")
			caller = callerFunc(func(ctx context.Context, fn string, args interface{}) (json.RawMessage, error) {
				return nil, expected
			})

			failing := cache.New(caller, store, rules, cache.SweepInterval(time.Hour))
			defer failing.Stop()

			_, err := failing.Call(context.Background(), "geo.lookup", map[string]interface{}{"url": "https://example.org"})
			Expect(err).To(Equal(expected))
		})
	})

	Describe("Invalidate", func() {
		It("forces the next request to call through", func() {
			args := map[string]interface{}{"url": "https://example.org"}

			_, err := subj.Call(context.Background(), "geo.lookup", args)
			Expect(err).ShouldNot(HaveOccurred())

			err = subj.Invalidate("geo.lookup", args)
			Expect(err).ShouldNot(HaveOccurred())

			res, err := subj.Call(context.Background(), "geo.lookup", args)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(res.Hit).To(BeFalse())
			Expect(calls).To(Equal(2))
		})
	})

	Describe("Stats", func() {
		It("counts hits, misses and stored entries", func() {
			args := map[string]interface{}{"url": "https://example.org"}

			_, err := subj.Call(context.Background(), "geo.lookup", args)
			Expect(err).ShouldNot(HaveOccurred())

			_, err = subj.Call(context.Background(), "geo.lookup", args)
			Expect(err).ShouldNot(HaveOccurred())

			stats := subj.Stats()
			Expect(stats.Hits).To(Equal(uint64(1)))
			Expect(stats.Misses).To(Equal(uint64(1)))
			Expect(stats.Stored).To(Equal(uint64(1)))
		})
	})
})
