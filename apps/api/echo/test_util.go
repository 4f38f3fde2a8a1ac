package echoapi

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/fee"
	"github.com/trezcool/karo/core/payment"
	"github.com/trezcool/karo/core/student"
	emailsvc "github.com/trezcool/karo/services/email"
	dummygw "github.com/trezcool/karo/services/gateway/dummy"
	dummydb "github.com/trezcool/karo/storage/database/dummy"
)

type testApp struct {
	server *Server

	db      *dummydb.DB
	feeRepo fee.Repository
	payRepo payment.Repository
	invRepo payment.InvoiceRepository
	dir     *student.DirectoryMock
	gateway *dummygw.Gateway
	feeSvc  *fee.Service
	paySvc  *payment.Service
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	core.Conf.Debug = false
	core.Conf.TestMode = true

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("newTestApp() failed: %v", err)
	}

	feeRepo := dummydb.NewFeeRepository(db)
	payRepo := dummydb.NewPaymentRepository(db)
	invRepo := dummydb.NewInvoiceRepository(db)
	campusRepo := dummydb.NewCampusRepository(db)
	dir := student.NewDirectoryMock()
	gw := dummygw.New()

	logger := core.NewStdLogger(log.New(ioutil.Discard, "", 0))
	mailSvc := emailsvc.NewConsoleServiceMock()

	feeSvc := fee.NewService(feeRepo, dir)
	invoices := payment.NewInvoiceGenerator(invRepo, dir, campusRepo)
	paySvc := payment.NewService(payRepo, feeRepo, campusRepo, dir, invoices, gw.Factory, mailSvc, logger)

	server := NewServer(ServerDeps{
		Addr:           ":0",
		DisableReqLogs: true,
		Logger:         logger,
		FeeSvc:         feeSvc,
		PaymentSvc:     paySvc,
	})

	return &testApp{
		server:  server,
		db:      db,
		feeRepo: feeRepo,
		payRepo: payRepo,
		invRepo: invRepo,
		dir:     dir,
		gateway: gw,
		feeSvc:  feeSvc,
		paySvc:  paySvc,
	}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func adminToken(t *testing.T) string {
	return getToken(t, NewClaims("admin1", "admin@test.cd", "cmp1", false, true))
}

func studentToken(t *testing.T, studentID string) string {
	return getToken(t, NewClaims(studentID, studentID+"@test.cd", "cmp1", true, false))
}

func getToken(t *testing.T, claims *Claims) string {
	t.Helper()
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decodeBody() failed: %v; body: %s", err, rec.Body.String())
	}
}
