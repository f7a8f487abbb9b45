package fporacle_test

import (
	"errors"
	"math/big"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mmixsim/fporacle"
	"github.com/sarchlab/mmixsim/fpu"
)

var _ = Describe("Rounding modes", func() {
	It("should list four distinct modes", func() {
		modes := fporacle.RoundingModes()
		seen := map[fpu.RoundingMode]bool{}
		for _, m := range modes {
			Expect(m.Name).ToNot(BeEmpty())
			seen[m.Sim] = true
		}
		Expect(seen).To(HaveLen(4))
	})

	It("should look up a simulator mode", func() {
		m, ok := fporacle.LookupMode(fpu.RoundDown)
		Expect(ok).To(BeTrue())
		Expect(m.Host).To(Equal(big.ToNegativeInf))

		_, ok = fporacle.LookupMode(fpu.RoundCurrent)
		Expect(ok).To(BeFalse())
	})

	Describe("ForEachRoundingMode", func() {
		It("should set the matching host mode for each call", func() {
			var visited []fpu.RoundingMode
			err := fporacle.ForEachRoundingMode(func(m fpu.RoundingMode) error {
				entry, ok := fporacle.LookupMode(m)
				Expect(ok).To(BeTrue())
				Expect(fporacle.HostRoundingMode()).To(Equal(entry.Host))
				visited = append(visited, m)
				return nil
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(visited).To(ConsistOf(fpu.RoundNear, fpu.RoundUp, fpu.RoundDown, fpu.RoundOff))
			Expect(fporacle.HostRoundingMode()).To(Equal(big.ToNearestEven))
		})

		It("should restore the host mode when f fails", func() {
			boom := errors.New("boom")
			calls := 0
			err := fporacle.ForEachRoundingMode(func(m fpu.RoundingMode) error {
				calls++
				if m == fpu.RoundUp {
					return boom
				}
				return nil
			})

			Expect(err).To(MatchError(boom))
			Expect(calls).To(Equal(2))
			Expect(fporacle.HostRoundingMode()).To(Equal(big.ToNearestEven))
		})

		It("should restore the host mode when f panics", func() {
			Expect(func() {
				_ = fporacle.ForEachRoundingMode(func(fpu.RoundingMode) error {
					panic("interrupted")
				})
			}).To(Panic())
			Expect(fporacle.HostRoundingMode()).To(Equal(big.ToNearestEven))
		})

		It("should nest with WithHostRounding", func() {
			err := fporacle.WithHostRounding(big.ToZero, func() error {
				return fporacle.ForEachRoundingMode(func(fpu.RoundingMode) error { return nil })
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(fporacle.HostRoundingMode()).To(Equal(big.ToNearestEven))
		})
	})
})
