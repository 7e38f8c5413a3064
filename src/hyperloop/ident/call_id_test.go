package ident_test

import (
	. "github.com/hyperloop/hyperloop-go/src/hyperloop/ident"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
)

var _ = Describe("CallID", func() {
	Describe("NewCallID", func() {
		It("returns a valid ID", func() {
			subject := NewCallID()
			err := subject.Validate()
			Expect(err).ShouldNot(HaveOccurred())
		})

		It("returns distinct IDs for calls issued concurrently", func() {
			seen := map[string]bool{}
			for i := 0; i < 100; i++ {
				id := NewCallID().String()
				Expect(seen[id]).To(BeFalse())
				seen[id] = true
			}
		})
	})

	Describe("ParseCallID", func() {
		It("parses a human readable ID", func() {
			id, err := ParseCallID("123456789ABCDEF-DEADBEEF")

			Expect(err).ShouldNot(HaveOccurred())
			Expect(id.String()).To(Equal("123456789ABCDEF-DEADBEEF"))
		})

		DescribeTable(
			"returns an error if the string is malformed",
			func(id string) {
				_, err := ParseCallID(id)

				Expect(err).Should(HaveOccurred())
			},
			Entry("malformed", "<malformed>"),
			Entry("empty", ""),
			Entry("zero clock component", "0-1"),
			Entry("zero random component", "1-0"),
			Entry("lowercase hex", "1f-2a"),
			Entry("missing random component", "1F"),
		)
	})

	DescribeTable(
		"Validate",
		func(subject CallID, isValid bool) {
			if isValid {
				Expect(subject.Validate()).To(Succeed())
			} else {
				Expect(subject.Validate()).Should(HaveOccurred())
			}
		},
		Entry("zero struct", CallID{}, false),
		Entry("zero clock component", CallID{Rand: 1}, false),
		Entry("zero random component", CallID{Clock: 1}, false),
		Entry("non-zero struct", CallID{Clock: 1, Rand: 1}, true),
	)

	Describe("ShortString", func() {
		It("returns a human readable ID", func() {
			subject := CallID{Clock: 0x0123456789abcdef, Rand: 0xdeadbeef}
			Expect(subject.ShortString()).To(Equal("DEADBEEF"))
		})
	})

	Describe("String", func() {
		It("returns a human readable ID", func() {
			subject := CallID{Clock: 0x0123456789abcdef, Rand: 0xdeadbeef}
			Expect(subject.String()).To(Equal("123456789ABCDEF-DEADBEEF"))
		})
	})
})
