package pemfile

import (
	"bytes"
	"os"
	"testing"

	gossh "golang.org/x/crypto/ssh"
)

func TestEnsure(t *testing.T) {
	k := InDir(t.TempDir())
	k.Bits = 1024
	pemBytes, signer, err := k.Ensure()
	if err != nil {
		t.Fatal(err)
	}
	pub, err := os.ReadFile(k.SSHPubKeyPath)
	if err != nil {
		t.Fatal(err)
	}
	parsed, _, _, _, err := gossh.ParseAuthorizedKey(pub)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(parsed.Marshal(), signer.PublicKey().Marshal()) {
		t.Errorf("public key does not match private key")
	}
	again, _, err := k.Ensure()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(pemBytes, again) {
		t.Errorf("existing key was regenerated")
	}
}
