package payment

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/campus"
	"github.com/trezcool/karo/core/fee"
	"github.com/trezcool/karo/core/money"
	"github.com/trezcool/karo/core/student"
)

type (
	InitiateResult struct {
		TransactionID string                 `json:"transaction_id"`
		OrderID       string                 `json:"order_id"`
		ClientPayload map[string]interface{} `json:"client_payload"`
	}

	VerifyResult struct {
		Success   bool       `json:"success"`
		FeeStatus fee.Status `json:"fee_status"`
	}

	Service struct {
		repo       Repository
		feeRepo    fee.Repository
		campusRepo campus.Repository
		dir        student.Directory
		invoices   *InvoiceGenerator
		gwFactory  GatewayFactory
		mailSvc    core.EmailService
		logger     core.Logger
		nowFunc    func() time.Time // mockable
	}
)

func NewService(
	repo Repository,
	feeRepo fee.Repository,
	campusRepo campus.Repository,
	dir student.Directory,
	invoices *InvoiceGenerator,
	gwFactory GatewayFactory,
	mailSvc core.EmailService,
	logger core.Logger,
) *Service {
	return &Service{
		repo:       repo,
		feeRepo:    feeRepo,
		campusRepo: campusRepo,
		dir:        dir,
		invoices:   invoices,
		gwFactory:  gwFactory,
		mailSvc:    mailSvc,
		logger:     logger,
		nowFunc:    func() time.Time { return time.Now().UTC() },
	}
}

func (svc *Service) now() time.Time { return svc.nowFunc() }

// InitiatePayment creates a gateway order against a fee and records the
// transaction in `created` state. The fee itself is untouched. A gateway
// timeout leaves no transaction behind; the caller retries with a fresh
// initiation.
func (svc *Service) InitiatePayment(ctx context.Context, ip InitiatePayment) (InitiateResult, error) {
	var res InitiateResult

	if err := ip.Validate(); err != nil {
		return res, err
	}

	f, err := svc.feeRepo.GetFee(ctx, ip.FeeID)
	if err != nil {
		return res, err
	}
	if f.IsDeleted() {
		return res, fee.ErrNotFound
	}

	now := svc.now()
	due := f.DueAmountAt(now)
	if !ip.Amount.IsPos() || ip.Amount > due {
		return res, &AmountMismatchError{Requested: ip.Amount, Due: due}
	}

	camp, err := svc.campusRepo.GetCampus(ctx, f.CampusID)
	if err != nil {
		return res, err
	}
	if camp.Gateway != ip.Gateway {
		return res, core.NewValidationError(
			fmt.Errorf("gateway %q is not configured for this campus", ip.Gateway),
			core.FieldError{Field: "gateway", Error: "not configured for this campus"},
		)
	}

	gw, err := svc.gwFactory(camp)
	if err != nil {
		return res, err
	}

	req := OrderRequest{Fee: f, Amount: ip.Amount}
	if stu, err := svc.dir.GetStudent(ctx, f.StudentID); err == nil {
		req.PayerName = stu.Name
		req.PayerEmail = stu.Email
	}

	order, err := gw.CreateOrder(ctx, req)
	if err != nil {
		if isTimeout(err) {
			return res, &GatewayTimeoutError{Gateway: gw.Name(), Op: "create order", Err: err}
		}
		return res, errors.Wrap(err, "creating gateway order")
	}

	txn := Transaction{
		ID:             uuid.New().String(),
		FeeID:          f.ID,
		CampusID:       f.CampusID,
		Gateway:        gw.Name(),
		GatewayOrderID: order.OrderID,
		Amount:         ip.Amount,
		Currency:       f.Currency,
		Status:         StatusCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if txn, err = svc.repo.CreateTransaction(ctx, txn); err != nil {
		return res, errors.Wrap(err, "recording transaction")
	}

	res.TransactionID = txn.ID
	res.OrderID = order.OrderID
	res.ClientPayload = order.ClientPayload
	return res, nil
}

// VerifyClientPayment is the synchronous path the paying client invokes after
// the gateway redirect. A valid signature captures the transaction and applies
// the ledger update; an invalid one fails the transaction and leaves the fee
// untouched. Racing the webhook for the same payment is absorbed as a no-op.
func (svc *Service) VerifyClientPayment(ctx context.Context, vp VerifyPayment) (VerifyResult, error) {
	var res VerifyResult

	if err := vp.Validate(); err != nil {
		return res, err
	}

	txn, err := svc.repo.GetTransactionByOrderID(ctx, vp.GatewayOrderID)
	if err != nil {
		return res, err
	}

	if txn.Status.IsSettled() {
		// the webhook won the race; report the settled state
		f, err := svc.feeRepo.GetFee(ctx, txn.FeeID)
		if err != nil {
			return res, err
		}
		return VerifyResult{Success: true, FeeStatus: f.StatusAt(svc.now())}, nil
	}

	camp, err := svc.campusRepo.GetCampus(ctx, txn.CampusID)
	if err != nil {
		return res, err
	}
	gw, err := svc.gwFactory(camp)
	if err != nil {
		return res, err
	}

	ok, err := gw.VerifyClientPayment(ctx, vp.GatewayOrderID, vp.GatewayPaymentID, vp.Signature)
	if err != nil {
		if isTimeout(err) {
			// not a verdict: the transaction keeps its prior state for later
			// webhook-driven resolution
			return res, &GatewayTimeoutError{Gateway: gw.Name(), Op: "client verification", Err: err}
		}
		return res, errors.Wrap(err, "verifying client payment")
	}
	if !ok {
		core.SignatureFailures.WithLabelValues(gw.Name()).Inc()
		svc.logger.Warn(
			fmt.Sprintf("security: client payment signature verification failed (order %s)", vp.GatewayOrderID),
		)
		if _, _, err := svc.repo.SwapStatus(ctx, txn.ID, txn.Status, StatusFailed, "", svc.now()); err != nil {
			return res, errors.Wrap(err, "failing transaction")
		}
		return res, &SignatureVerificationError{Gateway: gw.Name(), Op: "client_verification"}
	}

	f, err := svc.capture(ctx, txn, vp.GatewayPaymentID, false)
	if err != nil {
		return res, err
	}
	return VerifyResult{Success: true, FeeStatus: f.StatusAt(svc.now())}, nil
}

// HandleWebhook is the asynchronous path. Signature verification comes first:
// unverified payloads are rejected outright with no state change. Processing
// is idempotent; the same event delivered twice is a no-op.
//
// getHeader resolves the signature header by name (the name is gateway
// specific); pass http.Header.Get.
func (svc *Service) HandleWebhook(ctx context.Context, campusID string, rawBody []byte, getHeader func(name string) string) error {
	camp, err := svc.campusRepo.GetCampus(ctx, campusID)
	if err != nil {
		return err
	}
	gw, err := svc.gwFactory(camp)
	if err != nil {
		return err
	}

	if !gw.VerifyWebhookSignature(rawBody, getHeader(gw.SignatureHeader())) {
		core.SignatureFailures.WithLabelValues(gw.Name()).Inc()
		svc.logger.Warn(
			fmt.Sprintf("security: webhook signature verification failed (campus %s, gateway %s)", campusID, gw.Name()),
		)
		return &SignatureVerificationError{Gateway: gw.Name(), Op: "webhook"}
	}

	ev, err := gw.ParseWebhookEvent(rawBody)
	if err != nil {
		return errors.Wrap(err, "parsing webhook event")
	}
	if !ev.Status.IsValid() {
		svc.logger.Warn(fmt.Sprintf("ignoring webhook event %q with unknown status", ev.Type))
		return nil
	}

	txn, err := svc.repo.GetTransactionByOrderID(ctx, ev.GatewayOrderID)
	if err == ErrTxnNotFound {
		// webhook beat the client redirect; a valid race
		txn, err = svc.createFromEvent(ctx, camp, gw.Name(), ev)
	}
	if err != nil {
		return err
	}

	return svc.applyEvent(ctx, gw.Name(), txn, ev)
}

func (svc *Service) createFromEvent(ctx context.Context, camp campus.Campus, gateway string, ev Event) (Transaction, error) {
	if ev.FeeID == "" {
		return Transaction{}, errors.Errorf("webhook for unknown order %s carries no fee reference", ev.GatewayOrderID)
	}
	f, err := svc.feeRepo.GetFee(ctx, ev.FeeID)
	if err != nil {
		return Transaction{}, errors.Wrapf(err, "webhook for unknown order %s", ev.GatewayOrderID)
	}

	now := svc.now()
	txn := Transaction{
		ID:             uuid.New().String(),
		FeeID:          f.ID,
		CampusID:       camp.ID,
		Gateway:        gateway,
		GatewayOrderID: ev.GatewayOrderID,
		Amount:         ev.Amount,
		Currency:       f.Currency,
		Status:         StatusCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return svc.repo.CreateTransaction(ctx, txn)
}

func (svc *Service) applyEvent(ctx context.Context, gateway string, txn Transaction, ev Event) error {
	switch ev.Status {
	case StatusCaptured:
		_, err := svc.capture(ctx, txn, ev.GatewayPaymentID, true)
		return err

	case StatusPending, StatusAuthorized:
		if !txn.Status.CanTransitionTo(ev.Status) {
			return nil // stale or out-of-order; ignore
		}
		_, _, err := svc.repo.SwapStatus(ctx, txn.ID, txn.Status, ev.Status, ev.GatewayPaymentID, svc.now())
		return err

	case StatusFailed:
		if txn.Status.IsSettled() {
			// a failed event arriving after a capture never downgrades it
			return nil
		}
		if !txn.Status.CanTransitionTo(StatusFailed) {
			return nil
		}
		_, _, err := svc.repo.SwapStatus(ctx, txn.ID, txn.Status, StatusFailed, ev.GatewayPaymentID, svc.now())
		return err

	case StatusRefunded, StatusPartiallyRefunded:
		return svc.refund(ctx, gateway, txn, ev)

	default:
		return nil
	}
}

// capture settles a transaction into the fee ledger exactly once. The repo
// update is conditional on the transaction's previous status: a concurrent
// duplicate (client verification racing the webhook) sees the advanced status
// and no-ops.
func (svc *Service) capture(ctx context.Context, txn Transaction, gatewayPaymentID string, viaWebhook bool) (fee.Fee, error) {
	if txn.Status.IsSettled() {
		core.WebhookDuplicates.WithLabelValues(txn.Gateway).Inc()
		return svc.feeRepo.GetFee(ctx, txn.FeeID)
	}
	if !txn.Status.CanTransitionTo(StatusCaptured) {
		// e.g. a capture notification for a transaction already failed locally:
		// money may have moved; page an operator instead of guessing
		recErr := &ReconciliationError{
			TransactionID: txn.ID,
			FeeID:         txn.FeeID,
			Detail:        fmt.Sprintf("capture event received in state %q", txn.Status),
		}
		svc.logger.Error(recErr.Error(), recErr)
		return fee.Fee{}, recErr
	}

	f, err := svc.feeRepo.GetFee(ctx, txn.FeeID)
	if err != nil {
		return fee.Fee{}, err
	}

	now := svc.now()
	lateFee := f.LateFeeAt(now)
	discount := f.DiscountAmount
	if discount.IsZero() {
		discount = f.EligibleDiscountAt(now)
	}

	cand := f
	cand.PaidAmount = f.PaidAmount.Add(txn.Amount)
	cand.DiscountAmount = discount
	cand.LateFeeAmount = lateFee

	updTxn, updFee, applied, err := svc.repo.ApplyLedger(ctx, LedgerUpdate{
		TransactionID:    txn.ID,
		PrevStatus:       txn.Status,
		NextStatus:       StatusCaptured,
		GatewayPaymentID: gatewayPaymentID,
		WebhookVerified:  viaWebhook,
		FeeID:            f.ID,
		PaidDelta:        txn.Amount,
		DiscountAmount:   discount,
		LateFeeAmount:    lateFee,
		FeeStatus:        cand.StatusAt(now),
		Now:              now,
	})
	if err != nil {
		return fee.Fee{}, errors.Wrap(err, "applying capture to ledger")
	}
	if !applied {
		// the other writer of the race got here first
		core.WebhookDuplicates.WithLabelValues(txn.Gateway).Inc()
		return svc.feeRepo.GetFee(ctx, txn.FeeID)
	}

	core.PaymentsCaptured.WithLabelValues(txn.Gateway).Inc()

	inv, err := svc.invoices.Generate(ctx, updTxn, updFee)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("generating invoice for transaction %s: %v", txn.ID, err), err)
		return updFee, nil
	}
	svc.sendReceipt(inv)
	return updFee, nil
}

func (svc *Service) refund(ctx context.Context, gateway string, txn Transaction, ev Event) error {
	if txn.Status != StatusCaptured {
		if txn.Status == StatusRefunded || txn.Status == StatusPartiallyRefunded {
			core.WebhookDuplicates.WithLabelValues(gateway).Inc()
			return nil
		}
		recErr := &ReconciliationError{
			TransactionID: txn.ID,
			FeeID:         txn.FeeID,
			Detail:        fmt.Sprintf("refund event received in state %q", txn.Status),
		}
		svc.logger.Error(recErr.Error(), recErr)
		return recErr
	}

	f, err := svc.feeRepo.GetFee(ctx, txn.FeeID)
	if err != nil {
		return err
	}

	refund := ev.Amount
	var recErr *ReconciliationError
	if refund > f.PaidAmount {
		// refund exceeds recorded payments: clamp, then surface the
		// inconsistency to an operator - never silently patch it
		recErr = &ReconciliationError{
			TransactionID: txn.ID,
			FeeID:         f.ID,
			Detail: fmt.Sprintf("refund of %s exceeds recorded payments of %s",
				refund, f.PaidAmount),
		}
		refund = f.PaidAmount
	}

	now := svc.now()
	cand := f
	cand.PaidAmount = f.PaidAmount.Sub(refund)

	updTxn, updFee, applied, err := svc.repo.ApplyLedger(ctx, LedgerUpdate{
		TransactionID:    txn.ID,
		PrevStatus:       StatusCaptured,
		NextStatus:       ev.Status,
		GatewayPaymentID: txn.GatewayPaymentID,
		WebhookVerified:  txn.WebhookVerified,
		FeeID:            f.ID,
		PaidDelta:        money.Money(0).Sub(refund),
		DiscountAmount:   f.DiscountAmount,
		LateFeeAmount:    f.LateFeeAmount,
		FeeStatus:        cand.StatusAt(now),
		Now:              now,
	})
	if err != nil {
		return errors.Wrap(err, "applying refund to ledger")
	}
	if !applied {
		core.WebhookDuplicates.WithLabelValues(gateway).Inc()
		return nil
	}

	if _, err := svc.invoices.GenerateRefund(ctx, updTxn, updFee); err != nil {
		svc.logger.Error(fmt.Sprintf("generating refund invoice for transaction %s: %v", txn.ID, err), err)
	}

	if recErr != nil {
		svc.logger.Error(recErr.Error(), recErr)
		return recErr
	}
	return nil
}

func (svc *Service) sendReceipt(inv Invoice) {
	if svc.mailSvc == nil || inv.StudentEmail == "" {
		return
	}
	msg := &core.EmailMessage{
		To:      []mail.Address{{Name: inv.StudentName, Address: inv.StudentEmail}},
		Subject: fmt.Sprintf("Payment received - invoice %s", inv.Number),
		BodyStr: fmt.Sprintf(
			"Dear %s,\n\nWe received your payment of %s %s.\nInvoice number: %s\n\nThank you.",
			inv.StudentName, inv.Currency, inv.AmountPaid, inv.Number,
		),
	}
	svc.mailSvc.SendMessages(msg)
}

func isTimeout(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if stderrors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}
