// Package hyperpay is a payment connector for the HyperPay (OPPWA) gateway.
// It opens hosted checkout sessions for local transactions and reconciles
// the shopper's return against the gateway's authoritative status.
//
// # Overview
//
// The host application owns its orders. For each order it asks the connector
// for a checkout session, renders the HyperPay payment widget with the
// returned script URL, and lets HyperPay redirect the shopper back. The
// connector never trusts the redirect itself: it fetches the payment status
// from the gateway and moves the local transaction to its final state.
//
//	┌─────────────────┐    ┌─────────────────┐    ┌─────────────────┐
//	│                 │    │                 │    │                 │
//	│    Host App     │◄──►│    Connector    │◄──►│    HyperPay     │
//	│    (orders)     │    │  (reconciler)   │    │    (OPPWA)      │
//	│                 │    │                 │    │                 │
//	└─────────────────┘    └─────────────────┘    └─────────────────┘
//
// # Transaction States
//
//	draft ──► pending_gateway ──► done
//	                          ├─► pending_review
//	                          └─► error
//
// done, pending_review and error are terminal. A repeated notification for a
// terminal transaction is logged and ignored.
//
// # Payment Methods
//
//   - card: VISA, MASTER and AMEX on the card entity
//   - mada: the Saudi debit scheme on its own entity, SAR only by default
//
// # Quick Start
//
//	p := hyperpay.NewProvider(nil, nil)
//	if err := p.Initialize(map[string]string{
//	    "mode":         "test",
//	    "entityId":     "your-card-entity",
//	    "madaEntityId": "your-mada-entity",
//	    "accessToken":  "your-access-token",
//	}); err != nil {
//	    panic(err)
//	}
//
//	service := hyperpay.NewPaymentService(p, store, nil)
//
//	session, err := service.InitiatePayment(ctx, hyperpay.PaymentRequest{
//	    Reference: "ORD-2024/0001",
//	    Amount:    decimal.RequireFromString("150.00"),
//	    Currency:  "SAR",
//	    Method:    hyperpay.MethodMada,
//	    Customer:  customer,
//	})
//	// render <script src="{session.PaymentURL}"></script>
//
//	// on the return route
//	reference, err := service.HandleNotification(ctx, fields)
//
// # Environment Support
//
// mode=test talks to eu-test.oppwa.com, sends testMode=EXTERNAL and fills
// missing billing fields with safe placeholders. mode=live talks to
// eu-prod.oppwa.com and always rejects incomplete billing data.
// strictValidation=true applies the same rule in test mode.
//
// # HTTP API
//
//	# Create a checkout
//	POST /v1/payments/hyperpay/checkout
//
//	# Read a transaction
//	GET /v1/payments/hyperpay/{reference}
//
//	# Recent gateway exchanges of a transaction
//	GET /v1/payments/hyperpay/{reference}/logs
//
//	# Shopper returns (no auth)
//	GET|POST /payment/hyperpay/return
//	GET|POST /payment/hyperpay/return_mada
//
//	# Operations
//	GET /health
//	GET /metrics
//
// The /v1 routes require "Authorization: Bearer <API_KEY>".
package hyperpay
