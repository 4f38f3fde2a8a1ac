package payment_test

import (
	"context"
	"io/ioutil"
	"log"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/campus"
	"github.com/trezcool/karo/core/fee"
	"github.com/trezcool/karo/core/money"
	"github.com/trezcool/karo/core/payment"
	"github.com/trezcool/karo/core/student"
	emailsvc "github.com/trezcool/karo/services/email"
	dummygw "github.com/trezcool/karo/services/gateway/dummy"
	dummydb "github.com/trezcool/karo/storage/database/dummy"
)

var testCampus = campus.Campus{
	ID:      "cmp1",
	Name:    "Karo High",
	Gateway: dummygw.Name,
}

type testEnv struct {
	svc     *payment.Service
	gw      *dummygw.Gateway
	feeRepo fee.Repository
	payRepo payment.Repository
	invRepo payment.InvoiceRepository
	dir     *student.DirectoryMock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := dummydb.Open()
	require.NoError(t, err)

	dummydb.SeedCampus(db, testCampus)

	env := &testEnv{
		gw:      dummygw.New(),
		feeRepo: dummydb.NewFeeRepository(db),
		payRepo: dummydb.NewPaymentRepository(db),
		invRepo: dummydb.NewInvoiceRepository(db),
		dir:     student.NewDirectoryMock(),
	}
	env.dir.Add(student.Student{ID: "std1", Name: "Awe", Email: "awe@test.cd", ClassID: "class-5a"})

	campusRepo := dummydb.NewCampusRepository(db)
	invoices := payment.NewInvoiceGenerator(env.invRepo, env.dir, campusRepo)
	logger := core.NewStdLogger(log.New(ioutil.Discard, "", 0))
	env.svc = payment.NewService(
		env.payRepo, env.feeRepo, campusRepo, env.dir,
		invoices, env.gw.Factory, emailsvc.NewConsoleServiceMock(), logger,
	)
	return env
}

func (env *testEnv) seedFee(t *testing.T, total money.Money, due time.Time) fee.Fee {
	t.Helper()
	now := time.Now().UTC()
	f, err := env.feeRepo.CreateFee(context.Background(), fee.Fee{
		ID:            uuid.New().String(),
		StudentID:     "std1",
		CampusID:      testCampus.ID,
		AcademicYear:  "2026",
		Description:   "Term 1 Fees",
		TotalAmount:   total,
		Currency:      "KES",
		DueDate:       due,
		PaymentStatus: fee.StatusUnpaid,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	require.NoError(t, err)
	return f
}

func (env *testEnv) initiate(t *testing.T, feeID string, amount money.Money) payment.InitiateResult {
	t.Helper()
	res, err := env.svc.InitiatePayment(context.Background(), payment.InitiatePayment{
		FeeID:   feeID,
		Gateway: dummygw.Name,
		Amount:  amount,
	})
	require.NoError(t, err)
	return res
}

func futureDue() time.Time { return time.Now().UTC().AddDate(0, 1, 0) }

func TestService_InitiatePayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f := env.seedFee(t, money.FromMinor(500000), futureDue())

	t.Run("ok", func(t *testing.T) {
		res := env.initiate(t, f.ID, money.FromMinor(500000))
		assert.NotEmpty(t, res.TransactionID)
		assert.NotEmpty(t, res.OrderID)
		assert.NotEmpty(t, res.ClientPayload)

		txn, err := env.payRepo.GetTransaction(ctx, res.TransactionID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusCreated, txn.Status)
		assert.Equal(t, f.ID, txn.FeeID)

		// initiation never touches the fee
		got, err := env.feeRepo.GetFee(ctx, f.ID)
		require.NoError(t, err)
		assert.True(t, got.PaidAmount.IsZero())
	})

	t.Run("amount exceeds due", func(t *testing.T) {
		_, err := env.svc.InitiatePayment(ctx, payment.InitiatePayment{
			FeeID:   f.ID,
			Gateway: dummygw.Name,
			Amount:  money.FromMinor(600000),
		})
		var mismatch *payment.AmountMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, money.FromMinor(600000), mismatch.Requested)
		assert.Equal(t, money.FromMinor(500000), mismatch.Due)
	})

	t.Run("unknown fee", func(t *testing.T) {
		_, err := env.svc.InitiatePayment(ctx, payment.InitiatePayment{
			FeeID:   "lol",
			Gateway: dummygw.Name,
			Amount:  money.FromMinor(500000),
		})
		assert.Equal(t, fee.ErrNotFound, err)
	})

	t.Run("gateway not configured for campus", func(t *testing.T) {
		_, err := env.svc.InitiatePayment(ctx, payment.InitiatePayment{
			FeeID:   f.ID,
			Gateway: "razorpay",
			Amount:  money.FromMinor(500000),
		})
		assert.Error(t, err)
	})

	t.Run("gateway timeout leaves no transaction", func(t *testing.T) {
		env.gw.CreateOrderErr = context.DeadlineExceeded
		defer func() { env.gw.CreateOrderErr = nil }()

		_, err := env.svc.InitiatePayment(ctx, payment.InitiatePayment{
			FeeID:   f.ID,
			Gateway: dummygw.Name,
			Amount:  money.FromMinor(500000),
		})
		var timeout *payment.GatewayTimeoutError
		assert.ErrorAs(t, err, &timeout)
	})
}

func TestService_VerifyClientPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("valid signature captures exactly once", func(t *testing.T) {
		env := newTestEnv(t)
		emailsvc.ClearSentMessages()
		f := env.seedFee(t, money.FromMinor(500000), futureDue())
		init := env.initiate(t, f.ID, money.FromMinor(500000))

		vp := payment.VerifyPayment{
			GatewayOrderID:   init.OrderID,
			GatewayPaymentID: "pay_1",
			Signature:        "sig",
		}
		res, err := env.svc.VerifyClientPayment(ctx, vp)
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, fee.StatusPaid, res.FeeStatus)

		txn, err := env.payRepo.GetTransaction(ctx, init.TransactionID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusCaptured, txn.Status)
		assert.Equal(t, "pay_1", txn.GatewayPaymentID)

		got, err := env.feeRepo.GetFee(ctx, f.ID)
		require.NoError(t, err)
		assert.Equal(t, money.FromMinor(500000), got.PaidAmount)
		assert.Equal(t, fee.StatusPaid, got.PaymentStatus)

		// a receipt went out with the invoice number
		require.Len(t, emailsvc.SentMessages, 1)
		inv, err := env.invRepo.GetInvoiceByTransaction(ctx, txn.ID, payment.InvoicePayment)
		require.NoError(t, err)
		assert.Contains(t, emailsvc.SentMessages[0].Subject, inv.Number)

		// duplicate verification is a no-op on the ledger
		res, err = env.svc.VerifyClientPayment(ctx, vp)
		require.NoError(t, err)
		assert.True(t, res.Success)
		got, err = env.feeRepo.GetFee(ctx, f.ID)
		require.NoError(t, err)
		assert.Equal(t, money.FromMinor(500000), got.PaidAmount)
	})

	t.Run("invalid signature fails the transaction, fee untouched", func(t *testing.T) {
		env := newTestEnv(t)
		f := env.seedFee(t, money.FromMinor(500000), futureDue())
		init := env.initiate(t, f.ID, money.FromMinor(500000))

		env.gw.VerifyOK = false
		_, err := env.svc.VerifyClientPayment(ctx, payment.VerifyPayment{
			GatewayOrderID:   init.OrderID,
			GatewayPaymentID: "pay_1",
			Signature:        "tampered",
		})
		var sigErr *payment.SignatureVerificationError
		require.ErrorAs(t, err, &sigErr)

		txn, err := env.payRepo.GetTransaction(ctx, init.TransactionID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusFailed, txn.Status)

		got, err := env.feeRepo.GetFee(ctx, f.ID)
		require.NoError(t, err)
		assert.True(t, got.PaidAmount.IsZero())
		assert.Equal(t, fee.StatusUnpaid, got.PaymentStatus)
	})

	t.Run("gateway timeout keeps prior state", func(t *testing.T) {
		env := newTestEnv(t)
		f := env.seedFee(t, money.FromMinor(500000), futureDue())
		init := env.initiate(t, f.ID, money.FromMinor(500000))

		env.gw.VerifyErr = context.DeadlineExceeded
		_, err := env.svc.VerifyClientPayment(ctx, payment.VerifyPayment{
			GatewayOrderID:   init.OrderID,
			GatewayPaymentID: "pay_1",
			Signature:        "sig",
		})
		var timeout *payment.GatewayTimeoutError
		require.ErrorAs(t, err, &timeout)

		txn, err := env.payRepo.GetTransaction(ctx, init.TransactionID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusCreated, txn.Status)
	})

	t.Run("unknown order", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.VerifyClientPayment(ctx, payment.VerifyPayment{
			GatewayOrderID:   "order_lol",
			GatewayPaymentID: "pay_1",
			Signature:        "sig",
		})
		assert.Equal(t, payment.ErrTxnNotFound, err)
	})
}

func webhookHeader(string) string { return "whsig" }

func TestService_HandleWebhook(t *testing.T) {
	ctx := context.Background()

	t.Run("capture applies once across redeliveries", func(t *testing.T) {
		env := newTestEnv(t)
		f := env.seedFee(t, money.FromMinor(500000), futureDue())
		init := env.initiate(t, f.ID, money.FromMinor(500000))

		env.gw.ParsedEvent = payment.Event{
			Type:             "payment.captured",
			GatewayPaymentID: "pay_1",
			GatewayOrderID:   init.OrderID,
			Amount:           money.FromMinor(500000),
			Status:           payment.StatusCaptured,
		}

		require.NoError(t, env.svc.HandleWebhook(ctx, testCampus.ID, []byte("{}"), webhookHeader))
		require.NoError(t, env.svc.HandleWebhook(ctx, testCampus.ID, []byte("{}"), webhookHeader))

		got, err := env.feeRepo.GetFee(ctx, f.ID)
		require.NoError(t, err)
		assert.Equal(t, money.FromMinor(500000), got.PaidAmount)

		txn, err := env.payRepo.GetTransaction(ctx, init.TransactionID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusCaptured, txn.Status)
		assert.True(t, txn.WebhookVerified)
	})

	t.Run("webhook after client verification is a no-op", func(t *testing.T) {
		env := newTestEnv(t)
		f := env.seedFee(t, money.FromMinor(500000), futureDue())
		init := env.initiate(t, f.ID, money.FromMinor(500000))

		_, err := env.svc.VerifyClientPayment(ctx, payment.VerifyPayment{
			GatewayOrderID:   init.OrderID,
			GatewayPaymentID: "pay_1",
			Signature:        "sig",
		})
		require.NoError(t, err)

		env.gw.ParsedEvent = payment.Event{
			GatewayPaymentID: "pay_1",
			GatewayOrderID:   init.OrderID,
			Amount:           money.FromMinor(500000),
			Status:           payment.StatusCaptured,
		}
		require.NoError(t, env.svc.HandleWebhook(ctx, testCampus.ID, []byte("{}"), webhookHeader))

		got, err := env.feeRepo.GetFee(ctx, f.ID)
		require.NoError(t, err)
		assert.Equal(t, money.FromMinor(500000), got.PaidAmount)
	})

	t.Run("bad signature rejected with no state change", func(t *testing.T) {
		env := newTestEnv(t)
		f := env.seedFee(t, money.FromMinor(500000), futureDue())
		init := env.initiate(t, f.ID, money.FromMinor(500000))

		env.gw.WebhookSigOK = false
		err := env.svc.HandleWebhook(ctx, testCampus.ID, []byte("{}"), webhookHeader)
		var sigErr *payment.SignatureVerificationError
		require.ErrorAs(t, err, &sigErr)

		txn, err := env.payRepo.GetTransaction(ctx, init.TransactionID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusCreated, txn.Status)
	})

	t.Run("webhook beating the client redirect creates the transaction", func(t *testing.T) {
		env := newTestEnv(t)
		f := env.seedFee(t, money.FromMinor(500000), futureDue())

		env.gw.ParsedEvent = payment.Event{
			GatewayPaymentID: "pay_1",
			GatewayOrderID:   "order_external_1",
			FeeID:            f.ID,
			Amount:           money.FromMinor(500000),
			Status:           payment.StatusCaptured,
		}
		require.NoError(t, env.svc.HandleWebhook(ctx, testCampus.ID, []byte("{}"), webhookHeader))

		txn, err := env.payRepo.GetTransactionByOrderID(ctx, "order_external_1")
		require.NoError(t, err)
		assert.Equal(t, payment.StatusCaptured, txn.Status)

		got, err := env.feeRepo.GetFee(ctx, f.ID)
		require.NoError(t, err)
		assert.Equal(t, money.FromMinor(500000), got.PaidAmount)
	})

	t.Run("unknown order without fee reference", func(t *testing.T) {
		env := newTestEnv(t)
		env.gw.ParsedEvent = payment.Event{
			GatewayOrderID: "order_external_2",
			Amount:         money.FromMinor(500000),
			Status:         payment.StatusCaptured,
		}
		assert.Error(t, env.svc.HandleWebhook(ctx, testCampus.ID, []byte("{}"), webhookHeader))
	})

	t.Run("failed after capture never downgrades", func(t *testing.T) {
		env := newTestEnv(t)
		f := env.seedFee(t, money.FromMinor(500000), futureDue())
		init := env.initiate(t, f.ID, money.FromMinor(500000))

		env.gw.ParsedEvent = payment.Event{
			GatewayPaymentID: "pay_1",
			GatewayOrderID:   init.OrderID,
			Amount:           money.FromMinor(500000),
			Status:           payment.StatusCaptured,
		}
		require.NoError(t, env.svc.HandleWebhook(ctx, testCampus.ID, []byte("{}"), webhookHeader))

		env.gw.ParsedEvent.Status = payment.StatusFailed
		require.NoError(t, env.svc.HandleWebhook(ctx, testCampus.ID, []byte("{}"), webhookHeader))

		txn, err := env.payRepo.GetTransaction(ctx, init.TransactionID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusCaptured, txn.Status)
	})

	t.Run("capture after local failure pages an operator", func(t *testing.T) {
		env := newTestEnv(t)
		f := env.seedFee(t, money.FromMinor(500000), futureDue())
		init := env.initiate(t, f.ID, money.FromMinor(500000))

		env.gw.VerifyOK = false
		_, err := env.svc.VerifyClientPayment(ctx, payment.VerifyPayment{
			GatewayOrderID:   init.OrderID,
			GatewayPaymentID: "pay_1",
			Signature:        "tampered",
		})
		require.Error(t, err)

		env.gw.ParsedEvent = payment.Event{
			GatewayPaymentID: "pay_1",
			GatewayOrderID:   init.OrderID,
			Amount:           money.FromMinor(500000),
			Status:           payment.StatusCaptured,
		}
		err = env.svc.HandleWebhook(ctx, testCampus.ID, []byte("{}"), webhookHeader)
		var recErr *payment.ReconciliationError
		require.ErrorAs(t, err, &recErr)

		got, err := env.feeRepo.GetFee(ctx, f.ID)
		require.NoError(t, err)
		assert.True(t, got.PaidAmount.IsZero())
	})

	t.Run("intermediate statuses advance without touching the fee", func(t *testing.T) {
		env := newTestEnv(t)
		f := env.seedFee(t, money.FromMinor(500000), futureDue())
		init := env.initiate(t, f.ID, money.FromMinor(500000))

		for _, status := range []payment.Status{payment.StatusPending, payment.StatusAuthorized} {
			env.gw.ParsedEvent = payment.Event{
				GatewayOrderID: init.OrderID,
				Amount:         money.FromMinor(500000),
				Status:         status,
			}
			require.NoError(t, env.svc.HandleWebhook(ctx, testCampus.ID, []byte("{}"), webhookHeader))
		}

		txn, err := env.payRepo.GetTransaction(ctx, init.TransactionID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusAuthorized, txn.Status)

		// stale out-of-order "pending" after "authorized" is ignored
		env.gw.ParsedEvent.Status = payment.StatusPending
		require.NoError(t, env.svc.HandleWebhook(ctx, testCampus.ID, []byte("{}"), webhookHeader))
		txn, err = env.payRepo.GetTransaction(ctx, init.TransactionID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusAuthorized, txn.Status)

		got, err := env.feeRepo.GetFee(ctx, f.ID)
		require.NoError(t, err)
		assert.True(t, got.PaidAmount.IsZero())
	})
}

func TestService_Refunds(t *testing.T) {
	ctx := context.Background()

	capture := func(t *testing.T, env *testEnv, f fee.Fee, amount money.Money) payment.InitiateResult {
		t.Helper()
		init := env.initiate(t, f.ID, amount)
		env.gw.ParsedEvent = payment.Event{
			GatewayPaymentID: "pay_1",
			GatewayOrderID:   init.OrderID,
			Amount:           amount,
			Status:           payment.StatusCaptured,
		}
		require.NoError(t, env.svc.HandleWebhook(ctx, testCampus.ID, []byte("{}"), webhookHeader))
		return init
	}

	t.Run("full refund reverses the ledger and supersedes the invoice", func(t *testing.T) {
		env := newTestEnv(t)
		f := env.seedFee(t, money.FromMinor(500000), futureDue())
		init := capture(t, env, f, money.FromMinor(500000))

		payInv, err := env.invRepo.GetInvoiceByTransaction(ctx, init.TransactionID, payment.InvoicePayment)
		require.NoError(t, err)

		env.gw.ParsedEvent = payment.Event{
			GatewayOrderID: init.OrderID,
			Amount:         money.FromMinor(500000),
			Status:         payment.StatusRefunded,
		}
		require.NoError(t, env.svc.HandleWebhook(ctx, testCampus.ID, []byte("{}"), webhookHeader))

		txn, err := env.payRepo.GetTransaction(ctx, init.TransactionID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusRefunded, txn.Status)

		got, err := env.feeRepo.GetFee(ctx, f.ID)
		require.NoError(t, err)
		assert.True(t, got.PaidAmount.IsZero())
		assert.Equal(t, fee.StatusUnpaid, got.PaymentStatus)

		refInv, err := env.invRepo.GetInvoiceByTransaction(ctx, init.TransactionID, payment.InvoiceRefund)
		require.NoError(t, err)
		assert.Equal(t, payInv.Number, refInv.Supersedes)
		assert.NotEqual(t, payInv.Number, refInv.Number)

		// redelivery of the refund event is a no-op
		require.NoError(t, env.svc.HandleWebhook(ctx, testCampus.ID, []byte("{}"), webhookHeader))
		got, err = env.feeRepo.GetFee(ctx, f.ID)
		require.NoError(t, err)
		assert.True(t, got.PaidAmount.IsZero())
	})

	t.Run("partial refund keeps the remainder", func(t *testing.T) {
		env := newTestEnv(t)
		f := env.seedFee(t, money.FromMinor(500000), futureDue())
		init := capture(t, env, f, money.FromMinor(500000))

		env.gw.ParsedEvent = payment.Event{
			GatewayOrderID: init.OrderID,
			Amount:         money.FromMinor(200000),
			Status:         payment.StatusPartiallyRefunded,
		}
		require.NoError(t, env.svc.HandleWebhook(ctx, testCampus.ID, []byte("{}"), webhookHeader))

		got, err := env.feeRepo.GetFee(ctx, f.ID)
		require.NoError(t, err)
		assert.Equal(t, money.FromMinor(300000), got.PaidAmount)
		assert.Equal(t, fee.StatusPartial, got.PaymentStatus)
	})

	t.Run("refund exceeding recorded payments clamps and pages an operator", func(t *testing.T) {
		env := newTestEnv(t)
		f := env.seedFee(t, money.FromMinor(500000), futureDue())
		init := capture(t, env, f, money.FromMinor(500000))

		env.gw.ParsedEvent = payment.Event{
			GatewayOrderID: init.OrderID,
			Amount:         money.FromMinor(900000),
			Status:         payment.StatusRefunded,
		}
		err := env.svc.HandleWebhook(ctx, testCampus.ID, []byte("{}"), webhookHeader)
		var recErr *payment.ReconciliationError
		require.ErrorAs(t, err, &recErr)

		got, err := env.feeRepo.GetFee(ctx, f.ID)
		require.NoError(t, err)
		assert.True(t, got.PaidAmount.IsZero(), "clamped to recorded payments, never negative")
	})

	t.Run("refund before capture pages an operator", func(t *testing.T) {
		env := newTestEnv(t)
		f := env.seedFee(t, money.FromMinor(500000), futureDue())
		init := env.initiate(t, f.ID, money.FromMinor(500000))

		env.gw.ParsedEvent = payment.Event{
			GatewayOrderID: init.OrderID,
			Amount:         money.FromMinor(500000),
			Status:         payment.StatusRefunded,
		}
		err := env.svc.HandleWebhook(ctx, testCampus.ID, []byte("{}"), webhookHeader)
		var recErr *payment.ReconciliationError
		assert.ErrorAs(t, err, &recErr)
	})
}

func TestService_capture_discountAndLateFee(t *testing.T) {
	ctx := context.Background()

	seedConfiguredFee := func(t *testing.T, env *testEnv, due time.Time, mutate func(f *fee.Fee)) fee.Fee {
		t.Helper()
		now := time.Now().UTC()
		f := fee.Fee{
			ID:            uuid.New().String(),
			StudentID:     "std1",
			CampusID:      testCampus.ID,
			AcademicYear:  "2026",
			Description:   "Term 1 Fees",
			TotalAmount:   money.FromMinor(500000),
			Currency:      "KES",
			DueDate:       due,
			PaymentStatus: fee.StatusUnpaid,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		mutate(&f)
		f, err := env.feeRepo.CreateFee(ctx, f)
		require.NoError(t, err)
		return f
	}

	t.Run("early settlement freezes the discount", func(t *testing.T) {
		env := newTestEnv(t)
		now := time.Now().UTC()
		f := seedConfiguredFee(t, env, now.AddDate(0, 1, 0), func(f *fee.Fee) {
			f.Discount = fee.DiscountConfig{
				Enabled:       true,
				Amount:        money.FromMinor(20000),
				EarlyDeadline: now.AddDate(0, 0, 14),
			}
		})

		init := env.initiate(t, f.ID, money.FromMinor(480000))
		env.gw.ParsedEvent = payment.Event{
			GatewayPaymentID: "pay_1",
			GatewayOrderID:   init.OrderID,
			Amount:           money.FromMinor(480000),
			Status:           payment.StatusCaptured,
		}
		require.NoError(t, env.svc.HandleWebhook(ctx, testCampus.ID, []byte("{}"), webhookHeader))

		got, err := env.feeRepo.GetFee(ctx, f.ID)
		require.NoError(t, err)
		assert.Equal(t, money.FromMinor(20000), got.DiscountAmount)
		assert.Equal(t, fee.StatusPaid, got.PaymentStatus)
	})

	t.Run("late settlement freezes the late fee", func(t *testing.T) {
		env := newTestEnv(t)
		now := time.Now().UTC()
		f := seedConfiguredFee(t, env, now.AddDate(0, 0, -10), func(f *fee.Fee) {
			f.LateFee = fee.LateFeeConfig{Enabled: true, GraceDays: 2, PercentBps: 200}
		})

		init := env.initiate(t, f.ID, money.FromMinor(510000))
		env.gw.ParsedEvent = payment.Event{
			GatewayPaymentID: "pay_1",
			GatewayOrderID:   init.OrderID,
			Amount:           money.FromMinor(510000),
			Status:           payment.StatusCaptured,
		}
		require.NoError(t, env.svc.HandleWebhook(ctx, testCampus.ID, []byte("{}"), webhookHeader))

		got, err := env.feeRepo.GetFee(ctx, f.ID)
		require.NoError(t, err)
		assert.Equal(t, money.FromMinor(10000), got.LateFeeAmount)
		assert.Equal(t, fee.StatusPaid, got.PaymentStatus)
	})
}
