package identity

import (
	"time"

	"lattice"

	"github.com/fxamacker/cbor/v2"
)

// credentialPrefix domain-separates credential signatures.
const credentialPrefix = "lattice-credential:"

// signedEncMode encodes the signed payload canonically. Attribute maps
// must serialize to the same bytes on issue and verify, and the default
// encoder does not order map keys.
var signedEncMode, _ = cbor.CanonicalEncOptions().EncMode()

// Credential binds a subject identity to project attributes, attested
// by an authority's signature.
type Credential struct {
	Subject    string            `cbor:"1,keyasint"`
	ProjectID  []byte            `cbor:"2,keyasint"`
	Attributes map[string][]byte `cbor:"3,keyasint,omitempty"`
	Expires    int64             `cbor:"4,keyasint"`
	Issuer     string            `cbor:"5,keyasint"`
	Signature  []byte            `cbor:"6,keyasint"`
}

type credentialPayload struct {
	Subject    string            `cbor:"1,keyasint"`
	ProjectID  []byte            `cbor:"2,keyasint"`
	Attributes map[string][]byte `cbor:"3,keyasint,omitempty"`
	Expires    int64             `cbor:"4,keyasint"`
	Issuer     string            `cbor:"5,keyasint"`
}

// IssueCredential signs a credential for subject with the issuer's key.
func IssueCredential(issuer *Identity, subject string, projectID []byte, attributes map[string][]byte, ttl time.Duration) (*Credential, error) {
	c := &Credential{
		Subject:    subject,
		ProjectID:  projectID,
		Attributes: attributes,
		Expires:    time.Now().Add(ttl).Unix(),
		Issuer:     issuer.ID(),
	}
	payload, err := c.signedPayload()
	if err != nil {
		return nil, err
	}
	sig, err := issuer.Sign(payload)
	if err != nil {
		return nil, err
	}
	c.Signature = sig
	return c, nil
}

// VerifyCredential checks the credential's signature against the given
// authority set and its validity window against now.
func VerifyCredential(c *Credential, authorities []Public, now time.Time) error {
	if now.Unix() > c.Expires {
		return lattice.Invalidf("credential for %s expired", c.Subject)
	}

	var issuer *Public
	for i := range authorities {
		if authorities[i].ID == c.Issuer {
			issuer = &authorities[i]
			break
		}
	}
	if issuer == nil {
		return lattice.Invalidf("credential issuer %s is not a configured authority", c.Issuer)
	}

	payload, err := c.signedPayload()
	if err != nil {
		return err
	}
	if !verify(issuer.Key, payload, c.Signature) {
		return lattice.Invalidf("credential signature for %s does not verify", c.Subject)
	}
	return nil
}

func (c *Credential) signedPayload() ([]byte, error) {
	data, err := signedEncMode.Marshal(credentialPayload{
		Subject:    c.Subject,
		ProjectID:  c.ProjectID,
		Attributes: c.Attributes,
		Expires:    c.Expires,
		Issuer:     c.Issuer,
	})
	if err != nil {
		return nil, lattice.Invalidf("encode credential payload: %v", err)
	}
	return append([]byte(credentialPrefix), data...), nil
}
