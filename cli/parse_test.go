package cli_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mmixsim/cli"
)

var _ = Describe("ParseLine", func() {
	It("should return an empty name for a blank line", func() {
		name, args := cli.ParseLine("   ")
		Expect(name).To(BeEmpty())
		Expect(args).To(BeEmpty())
	})

	DescribeTable("arguments",
		func(line string, want []cli.Arg) {
			name, args := cli.ParseLine(line)
			Expect(name).To(Equal("x"))
			Expect(args).To(Equal(want))
		},
		Entry("decimal", "x 5", []cli.Arg{cli.IntArg(5)}),
		Entry("mmix hex", "x #1F", []cli.Arg{cli.IntArg(0x1F)}),
		Entry("c hex", "x 0x20", []cli.Arg{cli.IntArg(0x20)}),
		Entry("negative", "x -3", []cli.Arg{cli.IntArg(-3)}),
		Entry("symbol", "x Main", []cli.Arg{cli.SymArg("Main")}),
		Entry("mixed", "x  Main\toff", []cli.Arg{cli.SymArg("Main"), cli.SymArg("off")}),
		Entry("bad hex is a symbol", "x #zz", []cli.Arg{cli.SymArg("#zz")}),
	)
})
