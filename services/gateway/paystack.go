package gatewaysvc

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/karo/core/campus"
	"github.com/trezcool/karo/core/money"
	"github.com/trezcool/karo/core/payment"
)

const (
	PaystackName = "paystack"

	paystackBaseURL   = "https://api.paystack.co"
	paystackSigHeader = "X-Paystack-Signature"
)

// paystackGateway speaks the Paystack transaction/webhook protocol. The
// merchant-supplied reference doubles as our gateway order id; client
// verification re-checks the transaction server-side.
type paystackGateway struct {
	secret     string
	campusName string
	client     *http.Client
	baseURL    string
}

var _ payment.Gateway = (*paystackGateway)(nil)

func NewPaystack(c campus.Campus, client *http.Client) *paystackGateway {
	return &paystackGateway{
		secret:     c.GatewaySecret,
		campusName: c.Name,
		client:     client,
		baseURL:    paystackBaseURL,
	}
}

func (g *paystackGateway) Name() string            { return PaystackName }
func (g *paystackGateway) SignatureHeader() string { return paystackSigHeader }

func (g *paystackGateway) CreateOrder(ctx context.Context, req payment.OrderRequest) (payment.Order, error) {
	reference := "karo-" + uuid.New().String()
	body, err := json.Marshal(map[string]interface{}{
		"amount":    req.Amount.Minor(),
		"currency":  req.Fee.Currency,
		"email":     req.PayerEmail,
		"reference": reference,
		"metadata": map[string]string{
			"fee_id":     req.Fee.ID,
			"student_id": req.Fee.StudentID,
		},
	})
	if err != nil {
		return payment.Order{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/transaction/initialize", bytes.NewReader(body))
	if err != nil {
		return payment.Order{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.secret)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return payment.Order{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return payment.Order{}, errors.Errorf("paystack: transaction initialization failed with status %d", resp.StatusCode)
	}

	var out struct {
		Status bool `json:"status"`
		Data   struct {
			AuthorizationURL string `json:"authorization_url"`
			AccessCode       string `json:"access_code"`
			Reference        string `json:"reference"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return payment.Order{}, errors.Wrap(err, "paystack: decoding initialization response")
	}
	if !out.Status {
		return payment.Order{}, errors.New("paystack: transaction initialization rejected")
	}

	return payment.Order{
		OrderID: out.Data.Reference,
		ClientPayload: map[string]interface{}{
			"authorization_url": out.Data.AuthorizationURL,
			"access_code":       out.Data.AccessCode,
			"reference":         out.Data.Reference,
			"name":              g.campusName,
		},
	}, nil
}

// VerifyClientPayment re-verifies the transaction against Paystack; the
// client-side callback carries no signature of its own. A transport error
// (timeout included) is returned as-is, never as a failed verdict.
func (g *paystackGateway) VerifyClientPayment(ctx context.Context, orderID, paymentID, _ string) (bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/transaction/verify/"+orderID, nil)
	if err != nil {
		return false, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.secret)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return false, errors.Errorf("paystack: verification failed with status %d", resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return false, nil
	}

	var out struct {
		Status bool `json:"status"`
		Data   struct {
			ID        int64  `json:"id"`
			Status    string `json:"status"`
			Reference string `json:"reference"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, errors.Wrap(err, "paystack: decoding verification response")
	}

	return out.Status && out.Data.Status == "success" && out.Data.Reference == orderID, nil
}

func (g *paystackGateway) VerifyWebhookSignature(rawBody []byte, signatureHeader string) bool {
	mac := hmac.New(sha512.New, []byte(g.secret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signatureHeader))
}

func (g *paystackGateway) ParseWebhookEvent(rawBody []byte) (payment.Event, error) {
	var wh struct {
		Event string `json:"event"`
		Data  struct {
			ID        int64             `json:"id"`
			Reference string            `json:"reference"`
			Amount    int64             `json:"amount"`
			Status    string            `json:"status"`
			Metadata  map[string]string `json:"metadata"`

			// refund events
			TransactionReference string `json:"transaction_reference"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rawBody, &wh); err != nil {
		return payment.Event{}, errors.Wrap(err, "paystack: decoding webhook")
	}

	ev := payment.Event{
		Type:             wh.Event,
		GatewayPaymentID: formatPaystackID(wh.Data.ID),
		GatewayOrderID:   wh.Data.Reference,
		FeeID:            wh.Data.Metadata["fee_id"],
		Amount:           money.FromMinor(wh.Data.Amount),
	}

	switch wh.Event {
	case "charge.success":
		ev.Status = payment.StatusCaptured
	case "charge.failed":
		ev.Status = payment.StatusFailed
	case "refund.processed":
		ev.GatewayOrderID = wh.Data.TransactionReference
		ev.Status = payment.StatusRefunded
	case "refund.partial", "refund.partially_processed":
		ev.GatewayOrderID = wh.Data.TransactionReference
		ev.Status = payment.StatusPartiallyRefunded
	}
	return ev, nil
}

func formatPaystackID(id int64) string {
	if id == 0 {
		return ""
	}
	b, _ := json.Marshal(id)
	return string(b)
}
