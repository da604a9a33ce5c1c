// Package auth models the Bolt authentication tokens the connection layer
// attaches to HELLO/LOGON and translates each variant into the map shape
// packstream.EncodeHello/EncodeLogon expects.
package auth

import "github.com/go-bolt/boltconn/internal/boerrs"

// Scheme identifies which auth-token variant a Token carries.
type Scheme string

const (
	SchemeNone     Scheme = "none"
	SchemeBasic    Scheme = "basic"
	SchemeBearer   Scheme = "bearer"
	SchemeKerberos Scheme = "kerberos"
	SchemeCustom   Scheme = "custom"
)

// Token is a closed sum type over the auth schemes Bolt supports. Exactly
// one of the scheme-specific fields is meaningful, selected by Scheme.
type Token struct {
	Scheme Scheme

	// Basic / Kerberos / Custom
	Principal   string
	Credentials string
	Realm       string

	// Bearer
	AccessToken string

	// Custom
	CustomScheme     string
	CustomParameters map[string]any
}

// None returns the token used when the server requires no authentication.
func None() Token { return Token{Scheme: SchemeNone} }

// Basic returns a username/password token, optionally scoped to realm.
func Basic(principal, credentials, realm string) Token {
	return Token{Scheme: SchemeBasic, Principal: principal, Credentials: credentials, Realm: realm}
}

// Bearer returns a token carrying a pre-obtained SSO access token.
func Bearer(accessToken string) Token {
	return Token{Scheme: SchemeBearer, AccessToken: accessToken}
}

// Kerberos returns a token carrying a base64 Kerberos ticket as Credentials.
func Kerberos(ticket string) Token {
	return Token{Scheme: SchemeKerberos, Credentials: ticket}
}

// Custom returns a token for servers with a bespoke auth plugin: the
// server-side scheme name, the standard principal/credentials/realm
// triple, and any extra scheme-specific parameters.
func Custom(scheme, principal, credentials, realm string, params map[string]any) Token {
	return Token{
		Scheme:           SchemeCustom,
		CustomScheme:     scheme,
		Principal:        principal,
		Credentials:      credentials,
		Realm:            realm,
		CustomParameters: params,
	}
}

// ToLogonFields translates the token into the map packstream.EncodeHello
// (protocol < 5.1) or packstream.EncodeLogon (protocol >= 5.1, the
// "logon/logoff" split-auth phase) will serialize.
func (t Token) ToLogonFields() (map[string]any, error) {
	switch t.Scheme {
	case SchemeNone:
		return map[string]any{"scheme": "none"}, nil
	case SchemeBasic:
		fields := map[string]any{
			"scheme":      "basic",
			"principal":   t.Principal,
			"credentials": t.Credentials,
		}
		if t.Realm != "" {
			fields["realm"] = t.Realm
		}
		return fields, nil
	case SchemeBearer:
		return map[string]any{
			"scheme":      "bearer",
			"credentials": t.AccessToken,
		}, nil
	case SchemeKerberos:
		return map[string]any{
			"scheme":      "kerberos",
			"principal":   t.Principal,
			"credentials": t.Credentials,
		}, nil
	case SchemeCustom:
		// Extra parameters go in first; the standard keys win on collision
		// so a caller-supplied map cannot overwrite them.
		fields := make(map[string]any, len(t.CustomParameters)+4)
		for k, v := range t.CustomParameters {
			fields[k] = v
		}
		fields["scheme"] = t.CustomScheme
		if t.Principal != "" {
			fields["principal"] = t.Principal
		}
		if t.Credentials != "" {
			fields["credentials"] = t.Credentials
		}
		if t.Realm != "" {
			fields["realm"] = t.Realm
		}
		return fields, nil
	default:
		return nil, boerrs.New(boerrs.KindInvalidArgument, "auth.to_logon_fields", errUnknownScheme(t.Scheme))
	}
}

type errUnknownScheme string

func (e errUnknownScheme) Error() string { return "unknown auth scheme: " + string(e) }
