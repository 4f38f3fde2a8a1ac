package gatewaysvc

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"github.com/trezcool/karo/core/campus"
	"github.com/trezcool/karo/core/money"
	"github.com/trezcool/karo/core/payment"
)

const (
	RazorpayName = "razorpay"

	razorpayBaseURL   = "https://api.razorpay.com/v1"
	razorpaySigHeader = "X-Razorpay-Signature"
)

// razorpayGateway speaks the Razorpay order/webhook protocol directly; this
// repo deliberately carries no provider SDKs.
type razorpayGateway struct {
	keyID         string
	secret        string
	webhookSecret string
	campusName    string
	client        *http.Client
	baseURL       string
}

var _ payment.Gateway = (*razorpayGateway)(nil)

func NewRazorpay(c campus.Campus, client *http.Client) *razorpayGateway {
	return &razorpayGateway{
		keyID:         c.GatewayKeyID,
		secret:        c.GatewaySecret,
		webhookSecret: c.GatewayWebhookSecret,
		campusName:    c.Name,
		client:        client,
		baseURL:       razorpayBaseURL,
	}
}

func (g *razorpayGateway) Name() string            { return RazorpayName }
func (g *razorpayGateway) SignatureHeader() string { return razorpaySigHeader }

func (g *razorpayGateway) CreateOrder(ctx context.Context, req payment.OrderRequest) (payment.Order, error) {
	body, err := json.Marshal(map[string]interface{}{
		"amount":   req.Amount.Minor(),
		"currency": req.Fee.Currency,
		"receipt":  req.Fee.ID,
		"notes": map[string]string{
			"fee_id":     req.Fee.ID,
			"student_id": req.Fee.StudentID,
		},
	})
	if err != nil {
		return payment.Order{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return payment.Order{}, err
	}
	httpReq.SetBasicAuth(g.keyID, g.secret)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return payment.Order{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return payment.Order{}, errors.Errorf("razorpay: order creation failed with status %d", resp.StatusCode)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return payment.Order{}, errors.Wrap(err, "razorpay: decoding order response")
	}

	return payment.Order{
		OrderID: out.ID,
		ClientPayload: map[string]interface{}{
			"key":         g.keyID,
			"order_id":    out.ID,
			"amount":      req.Amount.Minor(),
			"currency":    req.Fee.Currency,
			"name":        g.campusName,
			"description": req.Fee.Description,
			"prefill": map[string]string{
				"name":  req.PayerName,
				"email": req.PayerEmail,
			},
		},
	}, nil
}

// VerifyClientPayment checks the checkout signature: HMAC-SHA256 of
// "order_id|payment_id" under the key secret. Pure computation; no I/O.
func (g *razorpayGateway) VerifyClientPayment(_ context.Context, orderID, paymentID, signature string) (bool, error) {
	mac := hmac.New(sha256.New, []byte(g.secret))
	fmt.Fprintf(mac, "%s|%s", orderID, paymentID)
	expected := hex.EncodeToString(mac.Sum(nil))
	// constant-time; a mismatch is a security event, not a retryable failure
	return hmac.Equal([]byte(expected), []byte(signature)), nil
}

func (g *razorpayGateway) VerifyWebhookSignature(rawBody []byte, signatureHeader string) bool {
	mac := hmac.New(sha256.New, []byte(g.webhookSecret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signatureHeader))
}

func (g *razorpayGateway) ParseWebhookEvent(rawBody []byte) (payment.Event, error) {
	var wh struct {
		Event   string `json:"event"`
		Payload struct {
			Payment struct {
				Entity struct {
					ID      string            `json:"id"`
					OrderID string            `json:"order_id"`
					Amount  int64             `json:"amount"`
					Notes   map[string]string `json:"notes"`
				} `json:"entity"`
			} `json:"payment"`
			Refund struct {
				Entity struct {
					ID        string `json:"id"`
					PaymentID string `json:"payment_id"`
					Amount    int64  `json:"amount"`
				} `json:"entity"`
			} `json:"refund"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(rawBody, &wh); err != nil {
		return payment.Event{}, errors.Wrap(err, "razorpay: decoding webhook")
	}

	pay := wh.Payload.Payment.Entity
	ev := payment.Event{
		Type:             wh.Event,
		GatewayPaymentID: pay.ID,
		GatewayOrderID:   pay.OrderID,
		FeeID:            pay.Notes["fee_id"],
		Amount:           money.FromMinor(pay.Amount),
	}

	switch wh.Event {
	case "payment.authorized":
		ev.Status = payment.StatusAuthorized
	case "payment.pending":
		ev.Status = payment.StatusPending
	case "payment.captured", "order.paid":
		ev.Status = payment.StatusCaptured
	case "payment.failed":
		ev.Status = payment.StatusFailed
	case "refund.processed":
		ref := wh.Payload.Refund.Entity
		ev.GatewayPaymentID = ref.PaymentID
		ev.Amount = money.FromMinor(ref.Amount)
		if ref.Amount < pay.Amount {
			ev.Status = payment.StatusPartiallyRefunded
		} else {
			ev.Status = payment.StatusRefunded
		}
	}
	return ev, nil
}
