package labels_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rancher/renovate-config/internal/labels"
)

var _ = Describe("Labels", func() {
	Describe("ValidateName", func() {
		It("accepts ordinary label names", func() {
			for _, name := range []string{"renovate", "dependencies", "automated", "kind/dependency", "área: infra"} {
				Expect(labels.ValidateName(name)).To(Succeed(), "expected %q to be valid", name)
			}
		})

		It("rejects empty names", func() {
			Expect(labels.ValidateName("")).NotTo(Succeed())
		})

		It("rejects surrounding whitespace", func() {
			Expect(labels.ValidateName(" renovate")).NotTo(Succeed())
			Expect(labels.ValidateName("renovate\t")).NotTo(Succeed())
		})

		It("rejects names longer than the platform limit", func() {
			Expect(labels.ValidateName(strings.Repeat("a", labels.MaxNameLength))).To(Succeed())
			Expect(labels.ValidateName(strings.Repeat("a", labels.MaxNameLength+1))).NotTo(Succeed())
		})

		It("counts characters rather than bytes", func() {
			Expect(labels.ValidateName(strings.Repeat("é", labels.MaxNameLength))).To(Succeed())
		})

		It("rejects control characters", func() {
			Expect(labels.ValidateName("bad\x00label")).NotTo(Succeed())
		})
	})

	Describe("Merge", func() {
		It("deduplicates names while preserving first-seen order", func() {
			merged := labels.Merge(
				[]string{"renovate", "dependencies"},
				[]string{"python", "renovate"},
				nil,
				[]string{"automated"},
			)
			Expect(merged).To(Equal([]string{"renovate", "dependencies", "python", "automated"}))
		})

		It("returns an empty, non-nil slice for no input", func() {
			merged := labels.Merge()
			Expect(merged).NotTo(BeNil())
			Expect(merged).To(BeEmpty())
		})
	})

	Describe("Sorted", func() {
		It("returns a sorted, deduplicated copy", func() {
			input := []string{"renovate", "automated", "dependencies", "automated"}
			Expect(labels.Sorted(input)).To(Equal([]string{"automated", "dependencies", "renovate"}))
			Expect(input[0]).To(Equal("renovate"))
		})
	})
})
