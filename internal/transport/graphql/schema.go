// Package graphql exposes the phone verification flows to storefront
// clients over graphql-go.
package graphql

import (
	"errors"
	"strings"

	"github.com/graphql-go/graphql"
	"github.com/phone-otp-gate/internal/application/customer"
	"github.com/phone-otp-gate/internal/application/registration"
	"github.com/phone-otp-gate/internal/application/verification"
	"github.com/phone-otp-gate/internal/domain"
	"github.com/phone-otp-gate/internal/transport/http/handler"
)

// Resolvers holds the application services the schema calls into.
type Resolvers struct {
	Verification verification.Service
	Registration registration.Service
	Customers    customer.Service
}

var resultType = graphql.NewObject(graphql.ObjectConfig{
	Name: "PhoneOtpOutput",
	Fields: graphql.Fields{
		"success": &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
		"message": &graphql.Field{Type: graphql.String},
	},
})

var verifyResultType = graphql.NewObject(graphql.ObjectConfig{
	Name: "VerifyPhoneOtpOutput",
	Fields: graphql.Fields{
		"success":          &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
		"message":          &graphql.Field{Type: graphql.String},
		"phone_verified":   &graphql.Field{Type: graphql.Boolean},
		"customer_updated": &graphql.Field{Type: graphql.Boolean},
	},
})

var addressVerifyResultType = graphql.NewObject(graphql.ObjectConfig{
	Name: "VerifyAddressPhoneOtpOutput",
	Fields: graphql.Fields{
		"success":            &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
		"message":            &graphql.Field{Type: graphql.String},
		"verification_token": &graphql.Field{Type: graphql.String},
		"expires_in":         &graphql.Field{Type: graphql.Int},
	},
})

var statusType = graphql.NewObject(graphql.ObjectConfig{
	Name: "PhoneOtpStatus",
	Fields: graphql.Fields{
		"has_pending_otp": &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
		"phone_number":    &graphql.Field{Type: graphql.String},
		"time_remaining":  &graphql.Field{Type: graphql.Int},
		"is_expired":      &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
	},
})

var customerType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Customer",
	Fields: graphql.Fields{
		"id":             &graphql.Field{Type: graphql.Int},
		"email":          &graphql.Field{Type: graphql.String},
		"firstname":      &graphql.Field{Type: graphql.String},
		"lastname":       &graphql.Field{Type: graphql.String},
		"phone_number":   &graphql.Field{Type: graphql.String},
		"phone_verified": &graphql.Field{Type: graphql.Boolean},
	},
})

var createCustomerResultType = graphql.NewObject(graphql.ObjectConfig{
	Name: "CreateCustomerOutput",
	Fields: graphql.Fields{
		"customer": &graphql.Field{Type: customerType},
		"token":    &graphql.Field{Type: graphql.String},
	},
})

var phoneInput = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "PhoneOtpInput",
	Fields: graphql.InputObjectConfigFieldMap{
		"phone_number": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
	},
})

var codeInput = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "VerifyPhoneOtpInput",
	Fields: graphql.InputObjectConfigFieldMap{
		"otp_code":     &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		"phone_number": &graphql.InputObjectFieldConfig{Type: graphql.String},
	},
})

var createCustomerInput = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "CustomerCreateInput",
	Fields: graphql.InputObjectConfigFieldMap{
		"email":        &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		"firstname":    &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		"lastname":     &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		"password":     &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		"phone_number": &graphql.InputObjectFieldConfig{Type: graphql.String},
	},
})

// NewSchema builds the schema: phone OTP mutations, the pending OTP status,
// customer creation and the customer phone fields.
func NewSchema(r Resolvers) (graphql.Schema, error) {
	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"phoneOtpStatus": &graphql.Field{
				Type: statusType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					s := r.Verification.OtpStatus(p.Context, authFrom(p.Context))
					return map[string]interface{}{
						"has_pending_otp": s.HasPendingOtp,
						"phone_number":    s.PhoneNumber,
						"time_remaining":  s.TimeRemaining,
						"is_expired":      s.IsExpired,
					}, nil
				},
			},
			"customer": &graphql.Field{
				Type: customerType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					a := authFrom(p.Context)
					if !a.LoggedIn() {
						return nil, errors.New("The current customer isn't authorized.")
					}
					c, err := r.Customers.Get(p.Context, a.CustomerID)
					if err != nil {
						return nil, errors.New(handler.UserMessage(err))
					}
					return c, nil
				},
			},
		},
	})

	mutation := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"sendPhoneOtp":          sendField(r, verification.FlowRegistration),
			"sendAddressPhoneOtp":   sendField(r, verification.FlowAddress),
			"verifyPhoneOtp":        verifyField(r),
			"verifyAddressPhoneOtp": verifyAddressField(r),
			"createCustomer":        createCustomerField(r),
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: query, Mutation: mutation})
}

func input(p graphql.ResolveParams) map[string]interface{} {
	in, _ := p.Args["input"].(map[string]interface{})
	return in
}

func raw(in map[string]interface{}, key string) string {
	s, _ := in[key].(string)
	return s
}

func str(in map[string]interface{}, key string) string {
	return strings.TrimSpace(raw(in, key))
}

// sendField sends a locale-normalized OTP. The registration flow checks phone
// availability; the address flow skips it.
func sendField(r Resolvers, flow verification.Flow) *graphql.Field {
	return &graphql.Field{
		Type: resultType,
		Args: graphql.FieldConfigArgument{
			"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(phoneInput)},
		},
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			phone := str(input(p), "phone_number")
			if phone == "" {
				return nil, errors.New("Phone number cannot be empty.")
			}
			auth := authFrom(p.Context)
			f := flow
			if f == verification.FlowRegistration && auth.LoggedIn() {
				f = verification.FlowAccount
			}
			err := r.Verification.SendOtp(p.Context, verification.SendInput{
				Auth: auth, Phone: phone, Flow: f, Normalize: true,
			})
			if err != nil {
				return map[string]interface{}{"success": false, "message": handler.UserMessage(err)}, nil
			}
			return map[string]interface{}{"success": true, "message": "OTP sent successfully to your phone number."}, nil
		},
	}
}

func verifyField(r Resolvers) *graphql.Field {
	return &graphql.Field{
		Type: verifyResultType,
		Args: graphql.FieldConfigArgument{
			"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(codeInput)},
		},
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			in := input(p)
			code := str(in, "otp_code")
			if code == "" {
				return nil, errors.New("OTP code cannot be empty.")
			}
			res, err := r.Verification.VerifyOtp(p.Context, verification.VerifyInput{
				Auth:  authFrom(p.Context),
				Code:  code,
				Phone: str(in, "phone_number"),
			})
			out := map[string]interface{}{"success": err == nil, "phone_verified": false, "customer_updated": false}
			if res != nil {
				out["message"] = res.Message
				out["phone_verified"] = res.PhoneVerified
				out["customer_updated"] = res.CustomerUpdated
			}
			if err != nil {
				out["message"] = handler.UserMessage(err)
			}
			return out, nil
		},
	}
}

func verifyAddressField(r Resolvers) *graphql.Field {
	return &graphql.Field{
		Type: addressVerifyResultType,
		Args: graphql.FieldConfigArgument{
			"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(codeInput)},
		},
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			in := input(p)
			code := str(in, "otp_code")
			if code == "" {
				return nil, errors.New("OTP code cannot be empty.")
			}
			tok, err := r.Verification.VerifyAddressOtp(p.Context, authFrom(p.Context), code, str(in, "phone_number"))
			if err != nil {
				return map[string]interface{}{"success": false, "message": handler.UserMessage(err)}, nil
			}
			return map[string]interface{}{
				"success":            true,
				"message":            "Phone number verified successfully.",
				"verification_token": tok.Token,
				"expires_in":         tok.ExpiresIn,
			}, nil
		},
	}
}

func createCustomerField(r Resolvers) *graphql.Field {
	return &graphql.Field{
		Type: createCustomerResultType,
		Args: graphql.FieldConfigArgument{
			"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(createCustomerInput)},
		},
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			in := input(p)
			req := domain.CreateCustomerRequest{
				Email:       str(in, "email"),
				FirstName:   str(in, "firstname"),
				LastName:    str(in, "lastname"),
				Password:    raw(in, "password"),
				PhoneNumber: str(in, "phone_number"),
			}
			res, err := r.Registration.CreateAccount(p.Context, authFrom(p.Context).SessionID, req)
			if err != nil {
				return nil, errors.New(handler.UserMessage(err))
			}
			return map[string]interface{}{"customer": res.Customer, "token": res.Token}, nil
		},
	}
}
