package libvirt

import "slices"

// CredentialType identifies a kind of credential the transport may ask the
// caller for. Values match libvirt's virConnectCredentialType.
type CredentialType int32

const (
	CredUsername     CredentialType = 1
	CredAuthName     CredentialType = 2
	CredLanguage     CredentialType = 3
	CredCnonce       CredentialType = 4
	CredPassphrase   CredentialType = 5
	CredEchoPrompt   CredentialType = 6
	CredNoEchoPrompt CredentialType = 7
	CredRealm        CredentialType = 8
	CredExternal     CredentialType = 9
)

// DefaultCredentialTypes is the fixed, ordered set of credential kinds a
// connection accepts.
var DefaultCredentialTypes = []CredentialType{
	CredAuthName,
	CredEchoPrompt,
	CredRealm,
	CredPassphrase,
	CredNoEchoPrompt,
	CredExternal,
}

// Credential is one request handed to a CredentialCallback. The callback
// fills in Result.
type Credential struct {
	Type      CredentialType
	Prompt    string
	Challenge string
	DefResult string
	Result    string
}

// CredentialCallback collects credentials. data is the opaque value given
// to Open. Returning an error aborts the connection attempt.
type CredentialCallback func(creds []*Credential, data any) error

// Auth bundles what a connection attempt may use to authenticate.
type Auth struct {
	CredTypes []CredentialType
	Callback  CredentialCallback
	Data      any
}

// ask requests a single credential of type t. It returns def when no
// callback is set, t is not accepted or the callback leaves Result empty.
func (a Auth) ask(t CredentialType, prompt, def string) (string, error) {
	if a.Callback == nil || !slices.Contains(a.CredTypes, t) {
		return def, nil
	}
	cred := &Credential{Type: t, Prompt: prompt, DefResult: def}
	if err := a.Callback([]*Credential{cred}, a.Data); err != nil {
		return "", err
	}
	if cred.Result == "" {
		return def, nil
	}
	return cred.Result, nil
}
