// Package gatewaysvc implements the payment.Gateway contract for each
// supported provider. Adapters are stateless protocol translators built per
// request from campus credentials, so rotating credentials needs no restart.
package gatewaysvc

import (
	"net/http"

	"github.com/pkg/errors"

	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/campus"
	"github.com/trezcool/karo/core/payment"
)

var builders = map[string]func(campus.Campus, *http.Client) payment.Gateway{
	RazorpayName: func(c campus.Campus, cl *http.Client) payment.Gateway { return NewRazorpay(c, cl) },
	PaystackName: func(c campus.Campus, cl *http.Client) payment.Gateway { return NewPaystack(c, cl) },
}

// New builds the adapter configured for the campus; one adapter per campus,
// selected from its stored credentials. Gateway calls are synchronous I/O with
// a bounded timeout.
func New(c campus.Campus) (payment.Gateway, error) {
	build, ok := builders[c.Gateway]
	if !ok {
		return nil, errors.Errorf("unsupported payment gateway %q", c.Gateway)
	}
	return build(c, &http.Client{Timeout: core.Conf.Payment.GatewayTimeout}), nil
}

var _ payment.GatewayFactory = New
