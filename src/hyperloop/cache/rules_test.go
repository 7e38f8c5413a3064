package cache_test

import (
	"time"

	"github.com/hyperloop/hyperloop-go/src/hyperloop/cache"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("RuleSet", func() {
	rules := cache.RuleSet{
		"geo.lookup": {
			cache.NewRule(`private\.example\.org`, cache.NoStore),
			cache.NewRule(`example\.org`, 10*time.Minute),
			cache.NewRule(`.`, 1*time.Minute),
		},
	}

	Describe("TTL", func() {
		It("returns the TTL of the first matching rule", func() {
			ttl, ok := rules.TTL("geo.lookup", `{"url":"https://example.org/geo"}`)

			Expect(ok).To(BeTrue())
			Expect(ttl).To(Equal(10 * time.Minute))
		})

		It("prefers earlier rules even when later rules also match", func() {
			ttl, ok := rules.TTL("geo.lookup", `{"url":"https://private.example.org/geo"}`)

			Expect(ok).To(BeFalse())
			Expect(ttl).To(BeZero())
		})

		It("falls through to a catch-all rule", func() {
			ttl, ok := rules.TTL("geo.lookup", `{"url":"https://elsewhere.com"}`)

			Expect(ok).To(BeTrue())
			Expect(ttl).To(Equal(1 * time.Minute))
		})

		It("does not store results for functions without rules", func() {
			_, ok := rules.TTL("geo.store", `{"url":"https://example.org"}`)

			Expect(ok).To(BeFalse())
		})

		It("does not store results when no rule matches", func() {
			empty := cache.RuleSet{
				"geo.lookup": {
					cache.NewRule(`example\.org`, time.Minute),
				},
			}

			_, ok := empty.TTL("geo.lookup", `{"url":"https://elsewhere.com"}`)

			Expect(ok).To(BeFalse())
		})
	})
})
