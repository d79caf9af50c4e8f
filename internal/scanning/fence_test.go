package scanning

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("StripFences", func() {
	DescribeTable("normalizing reply text",
		func(input string, expected string) {
			Expect(StripFences(input)).To(Equal(expected))
		},
		Entry("json-labelled fence", "```json\n[]\n```", "[]"),
		Entry("no fence", "[]", "[]"),
		Entry("unlabelled fence", "```\n[{\"phone\":\"010-1111-2222\"}]\n```", `[{"phone":"010-1111-2222"}]`),
		Entry("prose around the fence", "Here you go:\n```json\n[1]\n```\nHope that helps", "[1]"),
		Entry("json fence preferred over an earlier unlabelled one", "```\nnot this\n```\n```json\n[2]\n```", "[2]"),
		Entry("only the first segment", "```json\n[1]\n```\n```json\n[2]\n```", "[1]"),
		Entry("unclosed fence", "```json\n[3]", "[3]"),
		Entry("upper-case language tag", "```JSON\n[4]\n```", "[4]"),
		Entry("content on the first line of an unlabelled fence", "```\nphone\n[]\n```", "phone\n[]"),
		Entry("inline unlabelled fence", "```[5]```", "[5]"),
		Entry("surrounding whitespace", "  \n[]\n  ", "[]"),
		Entry("empty reply", "", ""),
	)

	DescribeTable("is idempotent",
		func(input string) {
			once := StripFences(input)
			Expect(StripFences(once)).To(Equal(once))
		},
		Entry("fenced", "```json\n[{\"name\":\"Kim\"}]\n```"),
		Entry("plain", `[{"name":"Kim"}]`),
		Entry("multiple segments", "```\na\n```\n```\nb\n```"),
		Entry("language tag only", "```javascript\n[]\n```"),
		Entry("unclosed", "```\n[]"),
	)
})
