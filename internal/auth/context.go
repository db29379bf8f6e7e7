package auth

import "context"

type principalContextKey struct{}
type localeContextKey struct{}

// Principal is the identity carried by a verified access token.
type Principal struct {
	UserID         string
	OrganizationID string
	Role           Role
	Locale         Locale
}

// ContextWithPrincipal attaches the authenticated principal to the context.
func ContextWithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, &principal)
}

// PrincipalFromContext extracts the authenticated principal from the context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	v, ok := ctx.Value(principalContextKey{}).(*Principal)
	if !ok || v == nil {
		return Principal{}, false
	}
	return *v, true
}

// ContextWithLocale stores the locale negotiated for the request.
func ContextWithLocale(ctx context.Context, locale Locale) context.Context {
	return context.WithValue(ctx, localeContextKey{}, locale)
}

// LocaleFromContext returns the request locale, defaulting to English.
func LocaleFromContext(ctx context.Context) Locale {
	if ctx == nil {
		return LocaleEN
	}
	if v, ok := ctx.Value(localeContextKey{}).(Locale); ok && v.Valid() {
		return v
	}
	return LocaleEN
}
