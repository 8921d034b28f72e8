// Package pemfile manages the SSH host key of the test console.
package pemfile

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/zond/worldtest"

	gossh "golang.org/x/crypto/ssh"
)

const DefaultBits = 4096

type KeyParams struct {
	KeyPath       string
	SSHPubKeyPath string
	// Bits defaults to DefaultBits.
	Bits int
}

// InDir returns the params for the conventional key files in dir.
func InDir(dir string) KeyParams {
	return KeyParams{
		KeyPath:       filepath.Join(dir, "private.pem"),
		SSHPubKeyPath: filepath.Join(dir, "public.pem"),
	}
}

func (k KeyParams) Generate() error {
	bits := k.Bits
	if bits == 0 {
		bits = DefaultBits
	}
	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return worldtest.WithStack(err)
	}
	keyBytes := x509.MarshalPKCS1PrivateKey(privateKey)

	if err := os.WriteFile(k.KeyPath, pem.EncodeToMemory(
		&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: keyBytes,
		}),
		0600,
	); err != nil {
		return worldtest.WithStack(err)
	}

	pub, err := gossh.NewPublicKey(&privateKey.PublicKey)
	if err != nil {
		return worldtest.WithStack(err)
	}
	return worldtest.WithStack(os.WriteFile(k.SSHPubKeyPath, gossh.MarshalAuthorizedKey(pub), 0600))
}

// Ensure generates the key pair unless the private key exists, and returns
// the private key PEM and its signer.
func (k KeyParams) Ensure() ([]byte, gossh.Signer, error) {
	if err := os.MkdirAll(filepath.Dir(k.KeyPath), 0700); err != nil {
		return nil, nil, worldtest.WithStack(err)
	}
	if _, err := os.Stat(k.KeyPath); os.IsNotExist(err) {
		if err := k.Generate(); err != nil {
			return nil, nil, err
		}
	} else if err != nil {
		return nil, nil, worldtest.WithStack(err)
	}
	pemBytes, err := os.ReadFile(k.KeyPath)
	if err != nil {
		return nil, nil, worldtest.WithStack(err)
	}
	signer, err := gossh.ParsePrivateKey(pemBytes)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "parsing %q", k.KeyPath)
	}
	return pemBytes, signer, nil
}
