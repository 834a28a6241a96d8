package config

// AuthConfig configures how an inbound bearer token is decoded into a
// principal_id at the ingress boundary. Issuing, refreshing, and storing
// tokens is out of scope; this only decodes what the caller presents.
type AuthConfig struct {
	// JWTSecret verifies the bearer token's HMAC signature. Empty disables
	// verification: the token, if present, is decoded but unverified, and
	// requests with no token at all fall back to an IP-derived principal.
	JWTSecret string `yaml:"jwt_secret"`
	// Required rejects unauthenticated requests with AUTH_TOKEN_MISSING
	// instead of falling back to an anonymous principal.
	Required bool `yaml:"required"`
}

func defaultAuthConfig() AuthConfig {
	return AuthConfig{}
}

func mergeAuthConfig(base, override AuthConfig) AuthConfig {
	if override.JWTSecret != "" {
		base.JWTSecret = override.JWTSecret
	}
	if override.Required {
		base.Required = override.Required
	}
	return base
}
