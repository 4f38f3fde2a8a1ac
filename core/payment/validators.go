package payment

import (
	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/money"
)

type (
	InitiatePayment struct {
		FeeID   string      `json:"fee_id" validate:"required"`
		Gateway string      `json:"gateway" validate:"required"`
		Amount  money.Money `json:"amount" validate:"required"`
	}

	VerifyPayment struct {
		GatewayOrderID   string `json:"gateway_order_id" validate:"required"`
		GatewayPaymentID string `json:"gateway_payment_id" validate:"required"`
		// providers whose client callback carries no signature (server-side
		// re-verification instead) leave this empty
		Signature string `json:"signature"`
	}
)

func (ip *InitiatePayment) Validate() error {
	return core.Validate.Struct(ip)
}

func (vp *VerifyPayment) Validate() error {
	return core.Validate.Struct(vp)
}
