package gateway_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/gateway"
)

var _ = Describe("Failure", func() {
	It("reports whether a status is known", func() {
		Expect(gateway.Failure{StatusCode: 503}.HasStatus()).To(BeTrue())
		Expect(gateway.Failure{Cause: errors.New("dial tcp")}.HasStatus()).To(BeFalse())
	})

	It("describes itself", func() {
		Expect(gateway.Failure{StatusCode: 429}.Error()).To(Equal("upstream returned 429"))
		Expect(gateway.Failure{Cause: errors.New("dial tcp")}.Error()).To(Equal("dial tcp"))
		Expect(gateway.Failure{}.Error()).To(Equal("upstream failure"))
	})

	It("unwraps to its cause", func() {
		f := gateway.Failure{Cause: gateway.ErrMissingAPIKey}
		Expect(errors.Is(f, gateway.ErrMissingAPIKey)).To(BeTrue())
	})
})
