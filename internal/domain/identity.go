// Package domain provides the shared types of the payment token system.
//
// IMPORTANT: This package MUST NOT import any other internal packages.
package domain

// KeyRecord is the persisted form of a member identity, one per user id.
// Exactly one of PrivateKey or SealedKey is set.
type KeyRecord struct {
	// UID is the user id the key belongs to.
	UID string `json:"uid"`

	// Name is the display name bound into the certificate.
	Name string `json:"name"`

	// PublicKey is the hex-encoded compressed public key.
	PublicKey string `json:"public_key"`

	// PrivateKey is the hex-encoded private scalar. Never leaves the device.
	PrivateKey string `json:"private_key,omitempty"`

	// SealedKey is the passphrase-sealed private key when sealing is enabled.
	SealedKey string `json:"sealed_key,omitempty"`

	// Certificate is the authority-issued binding of UID to PublicKey.
	// Empty until provisioning completes.
	Certificate string `json:"certificate,omitempty"`

	// CreatedAtMs is when the keypair was generated.
	CreatedAtMs int64 `json:"created_at_ms"`

	// CertifiedAtMs is when the certificate was stored.
	CertifiedAtMs int64 `json:"certified_at_ms,omitempty"`
}

// Certified reports whether provisioning completed for this record.
func (r *KeyRecord) Certified() bool {
	return r != nil && r.Certificate != ""
}

// Identity is a loaded, usable member identity.
type Identity struct {
	UID         string
	Name        string
	PublicKey   string
	PrivateKey  []byte
	Certificate string
}

// CanSign reports whether the identity holds both a private key and a certificate.
func (i *Identity) CanSign() bool {
	return i != nil && len(i.PrivateKey) > 0 && i.Certificate != ""
}
