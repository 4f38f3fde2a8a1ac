package echoapi

import (
	"io/ioutil"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/karo/core/fee"
	"github.com/trezcool/karo/core/payment"
)

type paymentApi struct {
	feeSvc     *fee.Service
	paymentSvc *payment.Service
}

func registerPaymentAPI(g *echo.Group, jwt echo.MiddlewareFunc, feeSvc *fee.Service, paymentSvc *payment.Service) {
	api := paymentApi{
		feeSvc:     feeSvc,
		paymentSvc: paymentSvc,
	}

	pg := g.Group("/payment")

	// gateways authenticate with the webhook signature, not a session
	pg.POST("/webhook/:gateway/:campus", api.webhook)

	// authed endpoints
	ag := pg.Group("", jwt)
	ag.POST("/fee-templates", api.createTemplate, adminMiddleware())
	ag.GET("/fee-templates/:id", api.retrieveTemplate, adminMiddleware())
	ag.POST("/generate-fees", api.generateFees, adminMiddleware())
	ag.GET("/fees/:id", api.retrieveFee, adminMiddleware())
	ag.POST("/initiate-payment", api.initiatePayment, studentMiddleware())
	ag.POST("/verify-payment", api.verifyPayment, studentMiddleware())
	ag.GET("/student-fees", api.studentFees, studentMiddleware())
}

// Handlers

func (api *paymentApi) createTemplate(ctx echo.Context) error {
	var data fee.NewTemplate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTemplate")
	}

	tpl, err := api.feeSvc.CreateTemplate(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, tpl)
}

func (api *paymentApi) retrieveTemplate(ctx echo.Context) error {
	tpl, err := api.feeSvc.GetTemplate(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, tpl)
}

func (api *paymentApi) generateFees(ctx echo.Context) error {
	var data fee.GenerateFees
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GenerateFees")
	}

	res, err := api.feeSvc.GenerateFees(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *paymentApi) retrieveFee(ctx echo.Context) error {
	f, err := api.feeSvc.GetFee(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *paymentApi) initiatePayment(ctx echo.Context) error {
	var data payment.InitiatePayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to InitiatePayment")
	}

	res, err := api.paymentSvc.InitiatePayment(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *paymentApi) verifyPayment(ctx echo.Context) error {
	var data payment.VerifyPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyPayment")
	}

	res, err := api.paymentSvc.VerifyClientPayment(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

// webhook always acknowledges verified deliveries with a 200 even when they are
// duplicates or out of order; gateways retry anything else. Only a bad
// signature or an unreadable payload is rejected.
func (api *paymentApi) webhook(ctx echo.Context) error {
	rawBody, err := ioutil.ReadAll(ctx.Request().Body)
	if err != nil {
		return errors.Wrap(err, "reading webhook body")
	}

	err = api.paymentSvc.HandleWebhook(
		ctx.Request().Context(),
		ctx.Param("campus"),
		rawBody,
		ctx.Request().Header.Get,
	)
	if err != nil {
		switch errors.Cause(err).(type) {
		case *payment.SignatureVerificationError:
			return err
		case *payment.ReconciliationError:
			// acknowledged; an operator has been paged and a retry cannot help
			return ctx.NoContent(http.StatusOK)
		default:
			return err
		}
	}
	return ctx.NoContent(http.StatusOK)
}

func (api *paymentApi) studentFees(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	studentID := claims.Subject
	if claims.IsAdmin && ctx.QueryParam("student_id") != "" {
		studentID = ctx.QueryParam("student_id")
	}

	summaries, err := api.feeSvc.StudentFees(ctx.Request().Context(), studentID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, summaries)
}
