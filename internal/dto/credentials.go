package dto

// CredentialKind tags which credential shape a request carried.
type CredentialKind int

const (
	// CredentialNone means no usable credential was supplied.
	CredentialNone CredentialKind = iota
	// CredentialSession is a member session token.
	CredentialSession
	// CredentialDevice is the legacy device-bound token triple.
	CredentialDevice
)

// Credentials is the tagged variant parsed once at the request boundary,
// so the entitlement engine dispatches exhaustively instead of probing
// optional fields.
type Credentials struct {
	Kind         CredentialKind
	SessionToken string
	Token        string
	TokenID      string
	DeviceID     string
}

// ParseCredentials classifies the optional credential fields of a
// check-lesson request. A session token wins over the device triple when
// both are present, since session+plan is the current model. A partial
// device triple still classifies as CredentialDevice so the engine can
// report missing_credentials precisely.
func ParseCredentials(req CheckLessonRequest) Credentials {
	if req.SessionToken != "" {
		return Credentials{
			Kind:         CredentialSession,
			SessionToken: req.SessionToken,
		}
	}

	if req.Token != "" || req.TokenID != "" || req.DeviceID != "" {
		return Credentials{
			Kind:     CredentialDevice,
			Token:    req.Token,
			TokenID:  req.TokenID,
			DeviceID: req.DeviceID,
		}
	}

	return Credentials{Kind: CredentialNone}
}

// Complete reports whether a device credential carries all three fields.
func (c Credentials) Complete() bool {
	if c.Kind != CredentialDevice {
		return c.Kind == CredentialSession && c.SessionToken != ""
	}
	return c.Token != "" && c.TokenID != "" && c.DeviceID != ""
}
