package http

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/phone-otp-gate/internal/application/address"
	"github.com/phone-otp-gate/internal/application/auth"
	"github.com/phone-otp-gate/internal/application/bridge"
	"github.com/phone-otp-gate/internal/application/checkout"
	"github.com/phone-otp-gate/internal/application/customer"
	"github.com/phone-otp-gate/internal/application/ledger"
	"github.com/phone-otp-gate/internal/application/otp"
	"github.com/phone-otp-gate/internal/application/registration"
	"github.com/phone-otp-gate/internal/application/session"
	"github.com/phone-otp-gate/internal/application/verification"
	"github.com/phone-otp-gate/internal/config"
	gqltransport "github.com/phone-otp-gate/internal/transport/graphql"
	"github.com/phone-otp-gate/internal/transport/http/handler"
	appmiddleware "github.com/phone-otp-gate/internal/transport/http/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// NewRouter wires the application services onto deps and returns the router.
func NewRouter(cfg *config.Config, deps *Deps) (http.Handler, error) {
	v := cfg.Verification

	var signer registration.TokenSigner
	var verifier appmiddleware.TokenVerifier
	if deps.JWTProvider != nil {
		signer, verifier = deps.JWTProvider, deps.JWTProvider
	}

	markers := session.NewMarkers(deps.KV, v.SessionMarkerTTL)
	customerSvc := customer.NewService(customer.ServiceDeps{Repo: deps.CustomerRepo, PhoneLocale: v.PhoneLocale})
	bridgeSvc := bridge.NewService(bridge.ServiceDeps{Store: deps.KV, TTL: v.BridgeTokenTTL})
	ledgerSvc := ledger.NewService(ledger.ServiceDeps{
		Addresses:                 deps.AddressRepo,
		Verifications:             deps.AddressVerificationRepo,
		Profiles:                  customerSvc,
		Tokens:                    bridgeSvc,
		Enabled:                   v.AddressVerificationEnabled(),
		RequireUnverifiedExisting: v.RequireUnverifiedExisting,
		PerPhoneSkip:              v.PerPhoneSkip,
	})
	otpSvc := otp.NewService(otp.ServiceDeps{
		Store:        otp.NewStore(deps.KV, v.OTPTTL, v.StoreTimeout),
		SMSSender:    deps.SMSSender,
		Availability: customerSvc,
		Message:      v.OTPMessage,
		TTL:          v.OTPTTL,
		SMSTimeout:   v.SMSTimeout,
	})
	registrationSvc := registration.NewService(registration.ServiceDeps{
		Customers:   deps.CustomerRepo,
		Markers:     markers,
		Cache:       deps.KV,
		Signer:      signer,
		Required:    v.RegistrationRequired(),
		CacheTTL:    v.RegistrationVerifiedTTL,
		PhoneLocale: v.PhoneLocale,
	})
	verificationSvc := verification.NewService(verification.ServiceDeps{
		OTP:          otpSvc,
		Customers:    customerSvc,
		Ledger:       ledgerSvc,
		Tokens:       bridgeSvc,
		Registration: registrationSvc,
		Markers:      markers,
		PhoneLocale:  v.PhoneLocale,
	})
	authSvc := auth.NewService(auth.ServiceDeps{Customers: deps.CustomerRepo, Signer: signer})
	addressSvc := address.NewService(address.ServiceDeps{Repo: deps.AddressRepo, Ledger: ledgerSvc, Markers: markers})
	checkoutSvc := checkout.NewService(checkout.ServiceDeps{Carts: deps.CartRepo, Ledger: ledgerSvc, Markers: markers})

	schema, err := gqltransport.NewSchema(gqltransport.Resolvers{
		Verification: verificationSvc,
		Registration: registrationSvc,
		Customers:    customerSvc,
	})
	if err != nil {
		return nil, fmt.Errorf("build graphql schema: %w", err)
	}

	r := chi.NewRouter()
	if cfg.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(appmiddleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", appmiddleware.SessionHeader, handler.VerificationTokenHeader},
		ExposedHeaders:   []string{appmiddleware.SessionHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// 5 requests/second, burst of 10, applied to endpoints that send SMS or check codes.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)
	secureCookie := cfg.AppEnv == "production"

	healthH := handler.NewHealthHandler()
	otpH := handler.NewOtpHandler(verificationSvc)
	phoneH := handler.NewPhoneHandler(verificationSvc)
	customerH := handler.NewCustomerHandler(registrationSvc, customerSvc, authSvc)
	addressH := handler.NewAddressHandler(addressSvc)
	checkoutH := handler.NewCheckoutHandler(checkoutSvc)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(appmiddleware.Session(v.SessionMarkerTTL, secureCookie))
		r.Use(appmiddleware.Auth(verifier))

		r.With(sensitiveRL.Limit).Post("/graphql", gqltransport.Handler(schema).ServeHTTP)

		r.Route("/v1", func(r chi.Router) {
			r.Get("/health-check/{action}", healthH.Ping)
			r.Post("/health-check/{action}", healthH.Ping)

			r.With(sensitiveRL.Limit).Post("/otp/send", otpH.Send)
			r.With(sensitiveRL.Limit).Post("/otp/verify", otpH.Verify)
			r.Get("/otp/status", otpH.Status)
			r.Get("/phone/is-verified", phoneH.IsVerified)
			r.With(sensitiveRL.Limit).Post("/phone/validate", phoneH.Validate)
			r.With(sensitiveRL.Limit).Post("/customers", customerH.Register)
			r.With(sensitiveRL.Limit).Post("/customers/token", customerH.Login)
			r.Post("/carts/{cartId}/shipping-information", checkoutH.SaveShippingInformation)

			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireCustomer)

				r.Get("/customers/me", customerH.Me)
				r.Post("/addresses", addressH.Create)
				r.Put("/addresses/{id}", addressH.Update)
			})
		})
	})

	return r, nil
}
