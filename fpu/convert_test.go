package fpu_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mmixsim/fpu"
)

var _ = Describe("Conversions", func() {
	DescribeTable("Int",
		func(in float64, mode fpu.RoundingMode, want uint64) {
			x, _ := fpu.Int(bitsOf(in), mode)
			Expect(x).To(Equal(want))
		},
		Entry("2.5 to even", 2.5, fpu.RoundNear, bitsOf(2)),
		Entry("3.5 to even", 3.5, fpu.RoundNear, bitsOf(4)),
		Entry("0.6 near", 0.6, fpu.RoundNear, bitsOf(1)),
		Entry("-0.4 near keeps the sign", -0.4, fpu.RoundNear, fpu.SignBit),
		Entry("1.2 up", 1.2, fpu.RoundUp, bitsOf(2)),
		Entry("-1.2 off", -1.2, fpu.RoundOff, bitsOf(-1)),
		Entry("large values stay", 1e300, fpu.RoundNear, bitsOf(1e300)),
	)

	DescribeTable("Fix",
		func(in float64, mode fpu.RoundingMode, want int64) {
			x, ex := fpu.Fix(bitsOf(in), mode, false)
			Expect(int64(x)).To(Equal(want))
			Expect(ex & fpu.ExFloatToFix).To(BeZero())
		},
		Entry("3.7 near", 3.7, fpu.RoundNear, int64(4)),
		Entry("3.7 off", 3.7, fpu.RoundOff, int64(3)),
		Entry("-3.5 near", -3.5, fpu.RoundNear, int64(-4)),
		Entry("-2.5 down", -2.5, fpu.RoundDown, int64(-3)),
		Entry("2^52", math.Ldexp(1, 52), fpu.RoundNear, int64(1)<<52),
	)

	It("should report float-to-fix overflow for FIX only", func() {
		_, ex := fpu.Fix(bitsOf(1e30), fpu.RoundNear, false)
		Expect(ex & fpu.ExFloatToFix).ToNot(BeZero())

		_, ex = fpu.Fix(bitsOf(1e30), fpu.RoundNear, true)
		Expect(ex & fpu.ExFloatToFix).To(BeZero())
	})

	It("should reject NaN and infinity in Fix", func() {
		_, ex := fpu.Fix(fpu.Infinity, fpu.RoundNear, false)
		Expect(ex).To(Equal(fpu.ExInvalid))
	})

	DescribeTable("Flot",
		func(in uint64, unsigned bool, want uint64) {
			x, _ := fpu.Flot(in, fpu.RoundNear, unsigned)
			Expect(x).To(Equal(want))
		},
		Entry("zero", uint64(0), false, uint64(0)),
		Entry("five", uint64(5), false, bitsOf(5)),
		Entry("minus seven", uint64(0xFFFFFFFFFFFFFFF9), false, bitsOf(-7)),
		Entry("2^63 unsigned", uint64(1)<<63, true, bitsOf(math.Ldexp(1, 63))),
		Entry("min int64", uint64(1)<<63, false, bitsOf(-math.Ldexp(1, 63))),
	)

	It("should round large integers in Flot", func() {
		in := uint64(1)<<60 + 1
		near, ex := fpu.Flot(in, fpu.RoundNear, false)
		Expect(near).To(Equal(bitsOf(math.Ldexp(1, 60))))
		Expect(ex & fpu.ExInexact).ToNot(BeZero())

		up, _ := fpu.Flot(in, fpu.RoundUp, false)
		Expect(up).To(Equal(bitsOf(math.Nextafter(math.Ldexp(1, 60), math.Inf(1)))))
	})

	Describe("Compare", func() {
		It("should order numbers", func() {
			c, ok := fpu.Compare(bitsOf(1), bitsOf(2))
			Expect(ok).To(BeTrue())
			Expect(c).To(Equal(-1))

			c, _ = fpu.Compare(bitsOf(-1), bitsOf(-2))
			Expect(c).To(Equal(1))

			c, _ = fpu.Compare(bitsOf(-1), fpu.Infinity)
			Expect(c).To(Equal(-1))
		})

		It("should treat zeros as equal", func() {
			c, ok := fpu.Compare(0, fpu.SignBit)
			Expect(ok).To(BeTrue())
			Expect(c).To(BeZero())
		})

		It("should report NaN as unordered", func() {
			_, ok := fpu.Compare(fpu.StdNaN, bitsOf(1))
			Expect(ok).To(BeFalse())
		})
	})
})
